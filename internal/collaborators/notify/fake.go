package notify

import (
	"context"
	"sync"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

// FakeSender records messages instead of sending them.
type FakeSender struct {
	mu     sync.Mutex
	sent   []Message
	failOn map[models.NotificationType]error
	failTo map[string]error
}

func NewFakeSender() *FakeSender {
	return &FakeSender{
		failOn: make(map[models.NotificationType]error),
		failTo: make(map[string]error),
	}
}

// FailOn makes every send of type t return err.
func (f *FakeSender) FailOn(t models.NotificationType, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[t] = err
}

// FailTo makes every send addressed to email return err.
func (f *FakeSender) FailTo(email string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failTo[email] = err
}

func (f *FakeSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := Render(msg); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[msg.Type]; err != nil {
		return err
	}
	if err := f.failTo[msg.Recipient.Email]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// Sent returns the delivered messages in order.
func (f *FakeSender) Sent() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

// SentOfType returns the delivered messages of type t.
func (f *FakeSender) SentOfType(t models.NotificationType) []Message {
	var out []Message
	for _, m := range f.Sent() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}
