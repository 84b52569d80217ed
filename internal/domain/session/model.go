package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Attendance is the per-session state of an attendee.
type Attendance string

const (
	AttendanceRegistered Attendance = "REGISTERED"
	AttendanceCheckedIn  Attendance = "CHECKED_IN"
)

// Valid reports whether a is one of the two known attendance states.
func (a Attendance) Valid() bool {
	return a == AttendanceRegistered || a == AttendanceCheckedIn
}

// Domain errors
var (
	ErrInvalidPosition  = errors.New("position must be at least 1")
	ErrOverCapacity     = errors.New("session holds more attendees than its position")
	ErrEmptyClassroomID = errors.New("classroom ID cannot be empty")
	ErrInvalidSchedule  = errors.New("session stop must be after start")
)

// AttendeeCredits is the remaining balance the backend reports for an attendee.
type AttendeeCredits struct {
	Amount *int
}

// Attendee is a client on a session roster.
type Attendee struct {
	ID         string
	Firstname  string
	Lastname   string
	Attendance Attendance
	Credits    *AttendeeCredits
}

// FullName returns "Firstname Lastname".
func (a Attendee) FullName() string {
	return strings.TrimSpace(a.Firstname + " " + a.Lastname)
}

// IsCheckedIn reports whether the attendee has been checked in.
func (a Attendee) IsCheckedIn() bool {
	return a.Attendance == AttendanceCheckedIn
}

// RemainingCredits returns the reported credit amount and whether one was reported.
func (a Attendee) RemainingCredits() (int, bool) {
	if a.Credits == nil || a.Credits.Amount == nil {
		return 0, false
	}
	return *a.Credits.Amount, true
}

// Schedule is the start and stop instant of one session.
type Schedule struct {
	Start time.Time
	Stop  time.Time
}

// Session is one dated occurrence of a classroom.
// ID is empty until the backend materializes the occurrence (first checkin).
type Session struct {
	ID          string
	ClassroomID string
	Name        string
	Subject     string
	Schedule    Schedule
	Position    int
	Attendees   []Attendee
}

// Validate checks the capacity invariants.
// PRE: Session is populated
// POST: Returns nil if valid, error otherwise
// INVARIANT: len(Attendees) <= Position
func (s *Session) Validate() error {
	if strings.TrimSpace(s.ClassroomID) == "" {
		return ErrEmptyClassroomID
	}
	if s.Position < 1 {
		return ErrInvalidPosition
	}
	if len(s.Attendees) > s.Position {
		return ErrOverCapacity
	}
	if !s.Schedule.Stop.IsZero() && !s.Schedule.Stop.After(s.Schedule.Start) {
		return ErrInvalidSchedule
	}
	return nil
}

// SameSlot reports whether s is the occurrence of classroomID starting at start.
// Start times are compared as instants so differently formatted timestamps match.
func (s *Session) SameSlot(classroomID string, start time.Time) bool {
	return s.ClassroomID == classroomID && s.Schedule.Start.Equal(start)
}

// Matches reports whether s is the same session as other, by ID when both
// have one, otherwise by classroom and start instant.
func (s *Session) Matches(other Session) bool {
	if s.ID != "" && other.ID != "" {
		return s.ID == other.ID
	}
	return s.SameSlot(other.ClassroomID, other.Schedule.Start)
}

// IsFull reports whether the roster has reached the session capacity.
func (s *Session) IsFull() bool {
	return len(s.Attendees) >= s.Position
}

// CheckedInCount returns how many attendees are checked in.
func (s *Session) CheckedInCount() int {
	n := 0
	for _, a := range s.Attendees {
		if a.IsCheckedIn() {
			n++
		}
	}
	return n
}

// Attendee returns the attendee with the given id.
func (s *Session) Attendee(id string) (Attendee, bool) {
	for _, a := range s.Attendees {
		if a.ID == id {
			return a, true
		}
	}
	return Attendee{}, false
}

// Key identifies a session in URLs whether or not it has been materialized.
func (s *Session) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return s.ClassroomID + "@" + s.Schedule.Start.UTC().Format(time.RFC3339)
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := s
	if s.Attendees != nil {
		out.Attendees = make([]Attendee, len(s.Attendees))
		for i, a := range s.Attendees {
			if a.Credits != nil {
				c := AttendeeCredits{}
				if a.Credits.Amount != nil {
					v := *a.Credits.Amount
					c.Amount = &v
				}
				a.Credits = &c
			}
			out.Attendees[i] = a
		}
	}
	return out
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseInstant parses an ISO-8601 timestamp as sent by the backend.
// Timestamps without an offset are wall-clock times in loc (UTC when nil).
func ParseInstant(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

// FormatInstant renders t the way the backend expects it in request bodies.
func FormatInstant(t time.Time) string {
	return t.Format(time.RFC3339)
}
