// Package verification turns email tokens into links and hands them to the
// mail pipeline.
package verification

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"blog_service/internal/models"
)

var ErrDeliveryFailed = errors.New("email delivery failed")

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

type Sender struct {
	pub             Publisher
	verificationURL string
	resetURL        string
}

func New(pub Publisher, verificationURL, resetURL string) *Sender {
	return &Sender{
		pub:             pub,
		verificationURL: verificationURL,
		resetURL:        resetURL,
	}
}

func (s *Sender) SendVerification(ctx context.Context, email, token string) error {
	return s.send(ctx, "verification.SendVerification", email, s.verificationURL, token, models.PurposeEmailVerification)
}

func (s *Sender) SendPasswordReset(ctx context.Context, email, token string) error {
	return s.send(ctx, "verification.SendPasswordReset", email, s.resetURL, token, models.PurposePasswordReset)
}

func (s *Sender) send(ctx context.Context, op, email, base, token string, purpose models.Purpose) error {
	link, err := Link(base, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := models.Message{
		Email:   email,
		Link:    link,
		Purpose: purpose,
	}

	if err := s.pub.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrDeliveryFailed, err)
	}

	return nil
}

// Link appends token as the "token" query parameter of base, keeping any
// query parameters base already has.
func Link(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid link base %q: %w", base, err)
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
