package orchestrators

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"crmpilates/internal/adapters/email"
	"crmpilates/internal/domain/session"
)

type failingSender struct{}

func (failingSender) Send(context.Context, email.Message) (email.Receipt, error) {
	return email.Receipt{}, errors.New("provider down")
}

func intPtr(v int) *int { return &v }

func checkedInSession(credits *session.AttendeeCredits) session.Session {
	return session.Session{
		ID:          "s1",
		ClassroomID: "c1",
		Name:        "Morning *mat*",
		Subject:     "MAT",
		Position:    3,
		Schedule: session.Schedule{
			Start: time.Date(2022, 9, 5, 8, 0, 0, 0, time.UTC),
			Stop:  time.Date(2022, 9, 5, 9, 0, 0, 0, time.UTC),
		},
		Attendees: []session.Attendee{
			{ID: "a1", Firstname: "Lea", Lastname: "Martin", Attendance: session.AttendanceCheckedIn, Credits: credits},
		},
	}
}

// TestExecuteCreditAlert tests when the alert fires.
func TestExecuteCreditAlert(t *testing.T) {
	tests := []struct {
		name       string
		credits    *session.AttendeeCredits
		attendeeID string
		to         []string
		want       bool
	}{
		{"at threshold", &session.AttendeeCredits{Amount: intPtr(1)}, "a1", []string{"staff@studio.test"}, true},
		{"below zero", &session.AttendeeCredits{Amount: intPtr(-2)}, "a1", []string{"staff@studio.test"}, true},
		{"above threshold", &session.AttendeeCredits{Amount: intPtr(5)}, "a1", []string{"staff@studio.test"}, false},
		{"not reported", nil, "a1", []string{"staff@studio.test"}, false},
		{"unknown attendee", &session.AttendeeCredits{Amount: intPtr(0)}, "zz", []string{"staff@studio.test"}, false},
		{"no staff address", &session.AttendeeCredits{Amount: intPtr(0)}, "a1", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := email.NewNoopSender()
			sent, err := ExecuteCreditAlert(context.Background(),
				CreditAlertInput{Session: checkedInSession(tt.credits), AttendeeID: tt.attendeeID},
				CreditAlertDeps{Sender: sender, To: tt.to, Threshold: 1, Location: time.UTC})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sent != tt.want || len(sender.Sent()) != map[bool]int{true: 1, false: 0}[tt.want] {
				t.Errorf("sent = %v, messages = %d, want %v", sent, len(sender.Sent()), tt.want)
			}
		})
	}
}

// TestExecuteCreditAlert_Body renders escaped markdown to HTML.
func TestExecuteCreditAlert_Body(t *testing.T) {
	sender := email.NewNoopSender()
	_, err := ExecuteCreditAlert(context.Background(),
		CreditAlertInput{Session: checkedInSession(&session.AttendeeCredits{Amount: intPtr(1)}), AttendeeID: "a1"},
		CreditAlertDeps{Sender: sender, To: []string{"staff@studio.test"}, Threshold: 1, Location: time.UTC})
	if err != nil {
		t.Fatalf("ExecuteCreditAlert: %v", err)
	}
	msg := sender.Sent()[0]
	if msg.Subject != "Low credits: Lea Martin" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	for _, want := range []string{"<strong>Lea Martin</strong>", "<strong>1</strong> credit left", "Morning *mat*", "Monday 5 September 2022 at 08:00", "Subject: Mat"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("HTML missing %q:\n%s", want, msg.HTML)
		}
	}
	if msg.Tags["kind"] != "low_credit" {
		t.Errorf("Tags = %v", msg.Tags)
	}
}

// TestExecuteCreditAlert_SendFailure surfaces the provider error.
func TestExecuteCreditAlert_SendFailure(t *testing.T) {
	sent, err := ExecuteCreditAlert(context.Background(),
		CreditAlertInput{Session: checkedInSession(&session.AttendeeCredits{Amount: intPtr(0)}), AttendeeID: "a1"},
		CreditAlertDeps{Sender: failingSender{}, To: []string{"staff@studio.test"}, Threshold: 1})
	if err == nil || sent {
		t.Errorf("sent = %v, err = %v", sent, err)
	}
}
