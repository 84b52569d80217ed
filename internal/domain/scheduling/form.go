// Package scheduling holds the classroom scheduling form and the pure reducer
// that keeps its start, end, duration and capacity consistent while staff edit it.
package scheduling

import (
	"strings"
	"time"

	"crmpilates/internal/domain/classroom"
	"crmpilates/internal/domain/client"
)

// Granularity is the step start and end times snap to.
const Granularity = 5 * time.Minute

// DefaultDuration is the duration of a fresh form, in minutes.
const DefaultDuration = 60

// Form is the non-persisted state of the add-classroom dialog.
type Form struct {
	ClassroomName string
	Subject       client.Subject
	Position      int
	Duration      int // minutes
	StartDateTime time.Time
	EndDateTime   time.Time
	Attendees     []string // client IDs
}

// NewForm returns a form starting at start (rounded) for DefaultDuration minutes.
func NewForm(start time.Time) Form {
	start = Round(start)
	return Form{
		Position:      1,
		Duration:      DefaultDuration,
		StartDateTime: start,
		EndDateTime:   start.Add(DefaultDuration * time.Minute),
	}
}

// Action is an edit applied to the form.
type Action interface {
	schedulingAction()
}

type (
	NameChanged      struct{ Name string }
	SubjectChanged   struct{ Subject client.Subject }
	PositionChanged  struct{ Position int }
	StartChanged     struct{ At time.Time }
	EndChanged       struct{ At time.Time }
	DurationChanged  struct{ Minutes int }
	AttendeesChanged struct{ Attendees []string }
)

func (NameChanged) schedulingAction()      {}
func (SubjectChanged) schedulingAction()   {}
func (PositionChanged) schedulingAction()  {}
func (StartChanged) schedulingAction()     {}
func (EndChanged) schedulingAction()       {}
func (DurationChanged) schedulingAction()  {}
func (AttendeesChanged) schedulingAction() {}

// Round snaps t to the nearest Granularity boundary.
func Round(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Round(Granularity)
}

func minutesBetween(start, end time.Time) int {
	return int(end.Sub(start) / time.Minute)
}

// Reduce applies action to f and returns the new form.
//
// Start and end edits are always accepted after rounding; the duration only
// follows them when the new span is an allowed duration. A duration edit moves
// the end to the start's clock time on the end's day plus the duration, so a
// recurrence stop date keeps its day.
func Reduce(f Form, action Action) Form {
	switch a := action.(type) {
	case NameChanged:
		f.ClassroomName = a.Name
	case SubjectChanged:
		f.Subject = a.Subject
	case PositionChanged:
		f.Position = max(a.Position, 1)
	case StartChanged:
		f.StartDateTime = Round(a.At)
		if d := minutesBetween(f.StartDateTime, f.EndDateTime); classroom.IsAllowedDuration(d) {
			f.Duration = d
		}
	case EndChanged:
		f.EndDateTime = Round(a.At)
		if d := minutesBetween(f.StartDateTime, f.EndDateTime); classroom.IsAllowedDuration(d) {
			f.Duration = d
		}
	case DurationChanged:
		f.Duration = a.Minutes
		f.EndDateTime = anchorEnd(f.StartDateTime, f.EndDateTime).Add(time.Duration(a.Minutes) * time.Minute)
	case AttendeesChanged:
		f.Attendees = append([]string(nil), a.Attendees...)
		if len(f.Attendees) > f.Position {
			f.Position = len(f.Attendees)
		}
	}
	return f
}

// anchorEnd returns the start's clock time on the end's calendar day.
func anchorEnd(start, end time.Time) time.Time {
	if end.IsZero() {
		return start
	}
	day := end.In(start.Location())
	return time.Date(day.Year(), day.Month(), day.Day(),
		start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
}

// FieldsFilled reports whether the form may be submitted.
func (f Form) FieldsFilled() bool {
	return strings.TrimSpace(f.ClassroomName) != "" &&
		f.Subject.Valid() &&
		classroom.IsAllowedDuration(f.Duration)
}

// Classroom converts the form into the classroom to create.
func (f Form) Classroom() classroom.Classroom {
	return classroom.Classroom{
		Name:      strings.TrimSpace(f.ClassroomName),
		Subject:   f.Subject,
		Position:  f.Position,
		Schedule:  classroom.Schedule{Start: f.StartDateTime, Stop: f.EndDateTime},
		Duration:  classroom.Duration{Duration: f.Duration, Unit: classroom.UnitMinute},
		Attendees: append([]string(nil), f.Attendees...),
	}
}
