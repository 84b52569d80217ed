package email

import (
	"context"
	"errors"
	"testing"
)

// TestNoopSender records messages in order.
func TestNoopSender(t *testing.T) {
	s := NewNoopSender()
	ctx := context.Background()
	for _, subject := range []string{"first", "second"} {
		if _, err := s.Send(ctx, Message{To: []string{"staff@studio.test"}, Subject: subject}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	sent := s.Sent()
	if len(sent) != 2 || sent[0].Subject != "first" || sent[1].Subject != "second" {
		t.Errorf("sent = %+v", sent)
	}
	if _, err := s.Send(ctx, Message{Subject: "nobody"}); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("err = %v, want ErrNoRecipients", err)
	}
}

// TestResendSender_Request tests the provider payload.
func TestResendSender_Request(t *testing.T) {
	s := NewResendSender("re_test", "Studio <noreply@studio.test>")

	params, err := s.request(Message{
		To:      []string{"staff@studio.test"},
		Subject: "Low credits",
		HTML:    "<p>hi</p>",
		Tags:    map[string]string{"subject": "MAT", "kind": "low_credit"},
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if params.From != "Studio <noreply@studio.test>" {
		t.Errorf("From = %q", params.From)
	}
	if len(params.Tags) != 2 || params.Tags[0].Name != "kind" || params.Tags[1].Name != "subject" {
		t.Errorf("Tags = %+v", params.Tags)
	}
	if _, err := s.request(Message{Subject: "x"}); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("err = %v", err)
	}
}
