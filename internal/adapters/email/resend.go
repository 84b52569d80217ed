package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/resend/resend-go/v2"
)

// ErrNoRecipients is returned for a message without any address.
var ErrNoRecipients = errors.New("email: no recipients")

// ResendSender sends messages via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	now    func() time.Time
}

// NewResendSender creates a sender for apiKey with a default from address.
// PRE: apiKey is a Resend API key
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		now:    time.Now,
	}
}

// Send hands msg to Resend.
// POST: returns the Resend message id on acceptance
func (s *ResendSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	params, err := s.request(msg)
	if err != nil {
		return Receipt{}, err
	}
	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		slog.Error("email_event", "event", "send_failed", "provider", "resend", "subject", msg.Subject, "error", err)
		return Receipt{}, fmt.Errorf("resend send: %w", err)
	}
	slog.Info("email_event", "event", "sent", "provider", "resend", "message_id", sent.Id, "subject", msg.Subject)
	return Receipt{ID: sent.Id, AcceptedAt: s.now()}, nil
}

func (s *ResendSender) request(msg Message) (*resend.SendEmailRequest, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}
	from := msg.From
	if from == "" {
		from = s.from
	}
	params := &resend.SendEmailRequest{
		From:    from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}
	names := make([]string, 0, len(msg.Tags))
	for name := range msg.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		params.Tags = append(params.Tags, resend.Tag{Name: name, Value: msg.Tags[name]})
	}
	return params, nil
}
