package mail

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("email sender not configured")

// Sender delivers a plain-text email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Nop is used when no EMAIL_PROVIDER is configured.
type Nop struct{}

func (Nop) Send(context.Context, string, string, string) error { return ErrNotConfigured }
