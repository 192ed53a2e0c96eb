package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
)

// Dialer is satisfied by *mail.Dialer.
type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPSender delivers notifications over SMTP with mandatory STARTTLS.
type SMTPSender struct {
	dialer Dialer
	from   Recipient
}

// NewSMTPDialer builds a go-mail dialer for host.
func NewSMTPDialer(host string, port int, username, password string, useTLS bool) *mail.Dialer {
	if port == 0 {
		port = 587
	}
	d := mail.NewDialer(host, port, username, password)
	if useTLS {
		d.StartTLSPolicy = mail.MandatoryStartTLS
		d.TLSConfig = &tls.Config{ServerName: host}
	}
	return d
}

func NewSMTPSender(dialer Dialer, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{dialer: dialer, from: Recipient{Name: fromName, Email: fromEmail}}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(msg); err != nil {
		return err
	}
	subject, body, err := Render(msg)
	if err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetAddressHeader("From", s.from.Email, s.from.Name)
	m.SetAddressHeader("To", msg.Recipient.Email, msg.Recipient.Name)
	if len(msg.CC) > 0 {
		cc := make([]string, 0, len(msg.CC))
		for _, r := range msg.CC {
			cc = append(cc, m.FormatAddress(r.Email, r.Name))
		}
		m.SetHeader("Cc", cc...)
	}
	if msg.ReplyTo != nil {
		m.SetAddressHeader("Reply-To", msg.ReplyTo.Email, msg.ReplyTo.Name)
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send %s: %w", msg.Type, err)
	}
	return nil
}
