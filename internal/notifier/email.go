package notifier

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// EmailNotifier sends alerts over SMTP.
type EmailNotifier struct {
	From          string
	To            []string
	SubjectPrefix string

	send func(m ...*gomail.Message) error
}

// NewEmailNotifier creates an SMTP notifier. Messages are sent with a fresh dial each time.
func NewEmailNotifier(host string, port int, username, password, from string, to []string, subjectPrefix string) *EmailNotifier {
	d := gomail.NewDialer(host, port, username, password)
	return &EmailNotifier{
		From:          from,
		To:            to,
		SubjectPrefix: subjectPrefix,
		send:          d.DialAndSend,
	}
}

func (e *EmailNotifier) Name() string { return "email" }

// Message builds the MIME message for an alert.
func (e *EmailNotifier) Message(alert Alert) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", e.From)
	m.SetHeader("To", e.To...)
	m.SetHeader("Subject", Subject(e.SubjectPrefix, alert))
	m.SetBody("text/plain", FormatText(alert))
	m.AddAlternative("text/html", "<pre>"+FormatHTML(alert)+"</pre>")
	return m
}

func (e *EmailNotifier) Notify(ctx context.Context, alert Alert) error {
	if len(e.To) == 0 {
		return errors.New("email: no recipients configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.send(e.Message(alert)); err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}
