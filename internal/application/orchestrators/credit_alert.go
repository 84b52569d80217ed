package orchestrators

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"crmpilates/internal/adapters/email"
	"crmpilates/internal/domain/client"
	"crmpilates/internal/domain/session"
)

// alertRenderer renders alert bodies; raw HTML in the markdown is dropped.
var alertRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// CreditAlertDeps holds dependencies for ExecuteCreditAlert.
type CreditAlertDeps struct {
	Sender    email.Sender
	To        []string // staff addresses; no alert is sent when empty
	Threshold int
	Location  *time.Location
}

// CreditAlertInput is a session returned by a successful checkin.
type CreditAlertInput struct {
	Session    session.Session
	AttendeeID string
}

// ExecuteCreditAlert emails the studio staff when the checked-in attendee is
// left with Threshold credits or fewer.
// PRE: input.Session is the server's response to the checkin
// POST: returns true when a message was handed to the sender
func ExecuteCreditAlert(ctx context.Context, input CreditAlertInput, deps CreditAlertDeps) (bool, error) {
	if deps.Sender == nil || len(deps.To) == 0 {
		return false, nil
	}
	attendee, ok := input.Session.Attendee(input.AttendeeID)
	if !ok {
		return false, nil
	}
	remaining, reported := attendee.RemainingCredits()
	if !reported || remaining > deps.Threshold {
		return false, nil
	}

	markdown := creditAlertMarkdown(input.Session, attendee, remaining, deps.Location)
	var body bytes.Buffer
	if err := alertRenderer.Convert([]byte(markdown), &body); err != nil {
		return false, fmt.Errorf("render credit alert: %w", err)
	}

	receipt, err := deps.Sender.Send(ctx, email.Message{
		To:      deps.To,
		Subject: fmt.Sprintf("Low credits: %s", attendee.FullName()),
		HTML:    body.String(),
		Text:    markdown,
		Tags:    map[string]string{"kind": "low_credit", "subject": input.Session.Subject},
	})
	if err != nil {
		slog.Error("credit_alert_event", "event", "send_failed", "attendee_id", attendee.ID, "error", err)
		return false, err
	}
	slog.Info("credit_alert_event", "event", "sent", "attendee_id", attendee.ID, "remaining", remaining, "message_id", receipt.ID)
	return true, nil
}

func creditAlertMarkdown(s session.Session, a session.Attendee, remaining int, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	start := s.Schedule.Start.In(loc)
	noun := "credits"
	if remaining == 1 || remaining == -1 {
		noun = "credit"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** has **%d** %s left.\n\n", escapeMarkdown(a.FullName()), remaining, noun)
	fmt.Fprintf(&b, "Last checkin: *%s* on %s at %s.\n", escapeMarkdown(s.Name), start.Format("Monday 2 January 2006"), start.Format("15:04"))
	fmt.Fprintf(&b, "Subject: %s\n", client.Subject(s.Subject).Label())
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`,
	"<", `\<`, ">", `\>`, "#", `\#`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
