// Package notify renders and delivers review notifications by email.
package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

// ErrUnknownTemplate is returned for a notification type with no template.
var ErrUnknownTemplate = stderrors.New("no template for notification type")

// Recipient is an addressee of a notification.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Attachment references a document held in the document store.
type Attachment struct {
	DocumentID  string `json:"documentId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// Message is one notification to send.
type Message struct {
	Type        models.NotificationType
	Recipient   Recipient
	CC          []Recipient
	ReplyTo     *Recipient
	Attachments []Attachment
	Model       map[string]interface{}
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type template struct {
	subject string
	body    string
}

var templates = map[models.NotificationType]template{
	models.NotificationUserAssignedForReview: {
		subject: "Felling licence application {{applicationReference}} has been assigned to you",
		body: "Dear {{recipientName}},\n\n" +
			"Application {{applicationReference}} for {{propertyName}} has been passed to you for {{stage}} by {{assignedByName}}.\n\n" +
			"View the application: {{viewApplicationURL}}",
	},
	models.NotificationApplicationProgressed: {
		subject: "Your felling licence application {{applicationReference}} has progressed",
		body: "Dear {{recipientName}},\n\n" +
			"Your application {{applicationReference}} for {{propertyName}} has moved to {{stage}}. " +
			"Your case is now with {{assignedToName}}.\n\n" +
			"View your application: {{viewApplicationURL}}",
	},
	models.NotificationEiaFormsIncorrectReminder: {
		subject: "Action needed: environmental impact assessment forms for {{applicationReference}}",
		body: "Dear {{recipientName}},\n\n" +
			"The environmental impact assessment forms attached to application {{applicationReference}} are not correct. " +
			"Please upload corrected forms.\n\n" +
			"If you have questions, reply to {{adminOfficerName}}.\n\n" +
			"View your application: {{viewApplicationURL}}",
	},
	models.NotificationEiaFormsMissingReminder: {
		subject: "Reminder: environmental impact assessment forms for {{applicationReference}}",
		body: "Dear {{recipientName}},\n\n" +
			"We have not yet received the environmental impact assessment forms for application {{applicationReference}}.\n\n" +
			"If you have questions, reply to {{adminOfficerName}}.\n\n" +
			"View your application: {{viewApplicationURL}}",
	},
	models.NotificationAmendmentsSent: {
		subject: "Amendments proposed to your felling licence application {{applicationReference}}",
		body: "Dear {{recipientName}},\n\n" +
			"{{woodlandOfficerName}} has proposed amendments to application {{applicationReference}}: {{amendmentsReason}}\n\n" +
			"Please respond by {{responseDeadline}}.\n\n" +
			"View your application: {{viewApplicationURL}}",
	},
}

// Render produces the subject and plain text body for msg.
func Render(msg Message) (subject, body string, err error) {
	tmpl, ok := templates[msg.Type]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, msg.Type)
	}

	data := make(map[string]interface{}, len(msg.Model)+1)
	for k, v := range msg.Model {
		data[k] = v
	}
	if _, ok := data["recipientName"]; !ok {
		data["recipientName"] = msg.Recipient.Name
	}

	subject = renderTemplate(tmpl.subject, data)
	body = renderTemplate(tmpl.body, data)
	if len(msg.Attachments) > 0 {
		body += "\n\nDocuments:\n" + attachmentList(msg.Attachments)
	}
	return subject, body, nil
}

func attachmentList(attachments []Attachment) string {
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, "- "+a.FileName)
	}
	sort.Strings(names)
	return strings.Join(names, "\n")
}

// renderTemplate replaces {{key}} placeholders and strips any left unresolved.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if i, ok := v.(int); ok {
			value = fmt.Sprintf("%d", i)
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}

func formatAddress(r Recipient) string {
	if r.Name == "" {
		return r.Email
	}
	return fmt.Sprintf("%q <%s>", r.Name, r.Email)
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.Recipient.Email) == "" {
		return fmt.Errorf("notification %s has no recipient email", msg.Type)
	}
	return nil
}
