package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
)

// ElasticsearchRecorder indexes each event as its own document.
type ElasticsearchRecorder struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchRecorder(client *elasticsearch.Client, index string) *ElasticsearchRecorder {
	return &ElasticsearchRecorder{client: client, index: index}
}

func (r *ElasticsearchRecorder) Publish(ctx context.Context, event Event) error {
	if event.CorrelationID == "" {
		event.CorrelationID = CorrelationID(ctx)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	res, err := r.client.Index(
		r.index,
		bytes.NewReader(body),
		r.client.Index.WithDocumentID(uuid.NewString()),
		r.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index audit event %s: %w", event.Name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("audit index error %s: %s", res.Status(), string(msg))
	}
	return nil
}
