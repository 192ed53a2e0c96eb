// Package messaging publishes fire-and-forget messages for downstream consumers.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Message is anything with a type name and a JSON body.
type Message interface {
	MessageType() string
}

// GeneratePdfPreview asks the document service to render a preview of the
// submitted application.
type GeneratePdfPreview struct {
	ApplicationID    string `json:"applicationId"`
	PerformingUserID string `json:"performingUserId"`
}

func (GeneratePdfPreview) MessageType() string { return "GeneratePdfPreview" }

// Publisher sends messages. Delivery is at-least-once.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// SNSAPI is the part of the SNS client used for publishing.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes every message to one topic with a messageType attribute.
type SNSPublisher struct {
	client   SNSAPI
	topicARN string
}

func NewSNSPublisher(client SNSAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.MessageType(), err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"messageType": {DataType: aws.String("String"), StringValue: aws.String(msg.MessageType())},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", msg.MessageType(), err)
	}
	return nil
}

// FakePublisher records published messages.
type FakePublisher struct {
	mu        sync.Mutex
	published []Message
	err       error
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// FailWith makes subsequent publishes return err. A nil err clears it.
func (f *FakePublisher) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakePublisher) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

// Published returns the accepted messages in order.
func (f *FakePublisher) Published() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.published...)
}
