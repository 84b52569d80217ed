package classroom

import (
	"errors"
	"strings"
	"time"

	"crmpilates/internal/domain/client"
)

// UnitMinute is the only duration unit the backend accepts.
const UnitMinute = "MINUTE"

// AllowedDurations are the session lengths, in minutes, a classroom may have.
var AllowedDurations = []int{15, 30, 45, 60, 75, 90, 105, 120}

// IsAllowedDuration reports whether minutes is in AllowedDurations.
func IsAllowedDuration(minutes int) bool {
	for _, d := range AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// Domain errors
var (
	ErrEmptyName       = errors.New("classroom name cannot be empty")
	ErrInvalidSubject  = errors.New("classroom subject is not valid")
	ErrInvalidPosition = errors.New("position must be at least 1")
	ErrInvalidDuration = errors.New("duration must be one of 15, 30, 45, 60, 75, 90, 105, 120 minutes")
	ErrTooManyAttendee = errors.New("more attendees than positions")
	ErrMissingStart    = errors.New("start date must be set")
)

// Duration is the length of each session of a classroom.
type Duration struct {
	Duration int
	Unit     string
}

// Schedule is when the recurrence begins and stops.
type Schedule struct {
	Start time.Time
	Stop  time.Time
}

// Classroom is a recurring activity from which sessions are materialized.
type Classroom struct {
	ID        string
	Name      string
	Subject   client.Subject
	Position  int
	Schedule  Schedule
	Duration  Duration
	Attendees []string // client IDs
}

// Validate checks the classroom before it is sent to the backend.
// PRE: Classroom is populated
// POST: Returns nil if valid, error otherwise
func (c *Classroom) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Subject.Valid() {
		return ErrInvalidSubject
	}
	if c.Position < 1 {
		return ErrInvalidPosition
	}
	if !IsAllowedDuration(c.Duration.Duration) {
		return ErrInvalidDuration
	}
	if len(c.Attendees) > c.Position {
		return ErrTooManyAttendee
	}
	if c.Schedule.Start.IsZero() {
		return ErrMissingStart
	}
	return nil
}
