package audit

import (
	"context"
	"sync"
)

// FakeRecorder keeps published events in memory.
type FakeRecorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func NewFakeRecorder() *FakeRecorder {
	return &FakeRecorder{}
}

// FailWith makes subsequent publishes return err. A nil err clears it.
func (f *FakeRecorder) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeRecorder) Publish(ctx context.Context, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if event.CorrelationID == "" {
		event.CorrelationID = CorrelationID(ctx)
	}
	f.events = append(f.events, event)
	return nil
}

// Events returns every published event in order.
func (f *FakeRecorder) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

// Named returns the published events with the given name.
func (f *FakeRecorder) Named(name string) []Event {
	var out []Event
	for _, e := range f.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
