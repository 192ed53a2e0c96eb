package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the part of the SES client used for sending.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender delivers notifications with Amazon SES.
type SESSender struct {
	client SESAPI
	from   Recipient
}

func NewSESSender(client SESAPI, fromEmail, fromName string) *SESSender {
	return &SESSender{client: client, from: Recipient{Name: fromName, Email: fromEmail}}
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	subject, body, err := Render(msg)
	if err != nil {
		return err
	}

	cc := make([]string, 0, len(msg.CC))
	for _, r := range msg.CC {
		cc = append(cc, formatAddress(r))
	}

	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{formatAddress(msg.Recipient)},
			CcAddresses: cc,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(formatAddress(s.from)),
	}
	if msg.ReplyTo != nil {
		input.ReplyToAddresses = []string{formatAddress(*msg.ReplyTo)}
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send %s: %w", msg.Type, err)
	}
	return nil
}
