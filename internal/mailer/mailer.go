// Package mailer delivers notification email through an SMTP relay or the
// HTTP notification endpoint.
package mailer

import (
	"context"
	"errors"
)

type Mail struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type Sender interface {
	Send(ctx context.Context, m Mail) (messageID string, err error)
}

var (
	ErrNoRecipients  = errors.New("missing recipient email(s)")
	ErrNotConfigured = errors.New("smtp credentials are not configured")
)

// Nop discards mail; used when neither SMTP nor an endpoint is configured.
type Nop struct{}

func (Nop) Send(context.Context, Mail) (string, error) { return "", ErrNotConfigured }
