// Package email delivers staff notifications through an external provider.
package email

import (
	"context"
	"time"
)

// Message is one outgoing notification.
type Message struct {
	To      []string
	From    string // falls back to the sender's default address
	Subject string
	HTML    string
	Text    string // plain-text alternative
	ReplyTo string
	Tags    map[string]string // provider-side labels, e.g. {"kind": "low_credit"}
}

// Receipt is the provider's acknowledgement of a message.
type Receipt struct {
	ID         string
	AcceptedAt time.Time
}

// Sender hands messages to a delivery provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
