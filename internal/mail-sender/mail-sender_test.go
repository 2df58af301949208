package mailSender

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"blog_service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type sent struct {
	from string
	to   []string
	raw  string
}

type fakeSender struct {
	sent   []sent
	closed bool
	err    error
}

func (s *fakeSender) Send(from string, to []string, msg io.WriterTo) error {
	if s.err != nil {
		return s.err
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return err
	}

	s.sent = append(s.sent, sent{from: from, to: to, raw: buf.String()})
	return nil
}

func (s *fakeSender) Close() error {
	s.closed = true
	return nil
}

type fakeDialer struct {
	sender *fakeSender
	err    error
}

func (d *fakeDialer) Dial() (gomail.SendCloser, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.sender, nil
}

func TestSend_Verification(t *testing.T) {
	fs := &fakeSender{}
	m := NewWithDialer(&fakeDialer{sender: fs}, "no-reply@blog.test")

	err := m.Send(models.Message{
		Email:   "user@test.com",
		Link:    "http://api/verify?token=abc",
		Purpose: models.PurposeEmailVerification,
	})
	require.NoError(t, err)

	require.Len(t, fs.sent, 1)
	assert.True(t, fs.closed)
	assert.Equal(t, "no-reply@blog.test", fs.sent[0].from)
	assert.Equal(t, []string{"user@test.com"}, fs.sent[0].to)
	assert.Contains(t, fs.sent[0].raw, "Subject: Confirm your email")
	assert.Contains(t, fs.sent[0].raw, "http://api/verify?token=3Dabc")
}

func TestSend_PasswordReset(t *testing.T) {
	fs := &fakeSender{}
	m := NewWithDialer(&fakeDialer{sender: fs}, "no-reply@blog.test")

	require.NoError(t, m.SendMessage(context.Background(), models.Message{
		Email:   "user@test.com",
		Link:    "http://web/reset",
		Purpose: models.PurposePasswordReset,
	}))

	require.Len(t, fs.sent, 1)
	assert.Contains(t, fs.sent[0].raw, "Subject: Reset your password")
}

func TestSend_Errors(t *testing.T) {
	m := NewWithDialer(&fakeDialer{err: errors.New("connection refused")}, "x@test")
	assert.Error(t, m.Send(models.Message{Email: "user@test.com"}))

	m = NewWithDialer(&fakeDialer{sender: &fakeSender{err: errors.New("550")}}, "x@test")
	assert.Error(t, m.Send(models.Message{Email: "user@test.com"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.SendMessage(ctx, models.Message{}), context.Canceled)
}

func TestNew_FromDefaultsToUsername(t *testing.T) {
	m := New("smtp.test", 587, "bot@test", "secret", "")
	assert.Equal(t, "bot@test", m.From)
}
