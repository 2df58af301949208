// Package mailSender delivers email token links over SMTP.
package mailSender

import (
	"context"
	"fmt"

	"blog_service/internal/models"

	"gopkg.in/gomail.v2"
)

type Dialer interface {
	Dial() (gomail.SendCloser, error)
}

type Mailer struct {
	From   string
	dialer Dialer
}

func New(host string, port int, username, password, from string) *Mailer {
	if from == "" {
		from = username
	}

	return &Mailer{
		From:   from,
		dialer: gomail.NewDialer(host, port, username, password),
	}
}

// NewWithDialer builds a Mailer on top of an arbitrary SMTP dialer.
func NewWithDialer(d Dialer, from string) *Mailer {
	return &Mailer{From: from, dialer: d}
}

func (m *Mailer) Send(msg models.Message) error {
	const op = "mailSender.Send"

	s, err := m.dialer.Dial()
	if err != nil {
		return fmt.Errorf("%s: dial: %w", op, err)
	}
	defer s.Close()

	if err := gomail.Send(s, m.Compose(msg)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SendMessage lets the API deliver mail directly when no broker is used.
func (m *Mailer) SendMessage(ctx context.Context, msg models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.Send(msg)
}

func (m *Mailer) Compose(msg models.Message) *gomail.Message {
	subject, body := content(msg)

	gm := gomail.NewMessage()
	gm.SetHeader("To", msg.Email)
	gm.SetHeader("From", m.From)
	gm.SetHeader("Subject", subject)
	gm.SetBody("text/plain", body)

	return gm
}

func content(msg models.Message) (subject, body string) {
	switch msg.Purpose {
	case models.PurposePasswordReset:
		return "Reset your password",
			"Someone asked to reset the password of your account.\n\n" +
				"Follow the link to choose a new one:\n" + msg.Link + "\n\n" +
				"If it was not you, ignore this message."
	default:
		return "Confirm your email",
			"Thanks for signing up.\n\n" +
				"Follow the link to confirm your email address:\n" + msg.Link
	}
}
