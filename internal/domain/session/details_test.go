package session_test

import (
	"testing"

	"crmpilates/internal/domain/session"
)

// TestDetails_AddAttendeeDisabledWhenFull covers a session with position 3
// holding 2 attendees that receives one more.
func TestDetails_AddAttendeeDisabledWhenFull(t *testing.T) {
	d := session.NewDetails(session.Session{ClassroomID: "c-1", Position: 3, Attendees: attendees(2)})
	if !d.CanAddAttendee() {
		t.Fatal("expected add button enabled with 2 of 3 places taken")
	}

	d = session.ReduceDetails(d, session.OpenAddAttendee{})
	if d.Form != session.FormAddAttendee {
		t.Fatalf("Form = %v, want add-attendee", d.Form)
	}

	full := d.Session.Clone()
	full.Attendees = attendees(3)
	d = session.ReduceDetails(d, session.SessionUpdated{Session: full})

	if d.CanAddAttendee() {
		t.Error("expected add button disabled when attendees == position")
	}
	if d.Form != session.FormNone {
		t.Errorf("Form = %v, want none once full", d.Form)
	}
}

// TestDetails_OpenIgnoredWhenFull verifies the form cannot open on a full session.
func TestDetails_OpenIgnoredWhenFull(t *testing.T) {
	d := session.NewDetails(session.Session{ClassroomID: "c-1", Position: 1, Attendees: attendees(1)})
	d = session.ReduceDetails(d, session.OpenAddAttendee{})
	if d.Form != session.FormNone {
		t.Errorf("Form = %v, want none", d.Form)
	}
}

// TestDetails_CloseForm verifies closing the form.
func TestDetails_CloseForm(t *testing.T) {
	d := session.NewDetails(session.Session{ClassroomID: "c-1", Position: 2})
	d = session.ReduceDetails(d, session.OpenAddAttendee{})
	d = session.ReduceDetails(d, session.CloseForm{})
	if d.Form != session.FormNone {
		t.Errorf("Form = %v, want none", d.Form)
	}
	if got := d.Form.String(); got != "none" {
		t.Errorf("String() = %q", got)
	}
}
