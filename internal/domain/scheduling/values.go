package scheduling

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crmpilates/internal/domain/client"
)

// InputLayout is the format of datetime-local inputs.
const InputLayout = "2006-01-02T15:04"

// Form field names shared with the classroom template.
const (
	FieldName         = "name"
	FieldSubject      = "subject"
	FieldPosition     = "position"
	FieldDuration     = "duration"
	FieldStart        = "start"
	FieldEnd          = "end"
	FieldAttendees    = "attendees"
	FieldPrevStart    = "prev_start"
	FieldPrevEnd      = "prev_end"
	FieldPrevDuration = "prev_duration"
)

// FromValues rebuilds the form from a dialog submission.
//
// The dialog posts the previous start, end and duration next to the edited
// ones; the form is rebuilt from the previous values and every field that
// differs is replayed through Reduce, so a submission behaves exactly like the
// sequence of edits the user made.
// PRE: values come from the classroom dialog
// POST: Returns the reduced form, or an error for unparseable dates/numbers
func FromValues(values url.Values, loc *time.Location) (Form, error) {
	if loc == nil {
		loc = time.UTC
	}
	prevStart, err := parseInput(values.Get(FieldPrevStart), loc)
	if err != nil {
		return Form{}, fmt.Errorf("previous start: %w", err)
	}
	prevEnd, err := parseInput(values.Get(FieldPrevEnd), loc)
	if err != nil {
		return Form{}, fmt.Errorf("previous end: %w", err)
	}
	prevDuration, err := parseInt(values.Get(FieldPrevDuration), DefaultDuration)
	if err != nil {
		return Form{}, fmt.Errorf("previous duration: %w", err)
	}
	position, err := parseInt(values.Get(FieldPosition), 1)
	if err != nil {
		return Form{}, fmt.Errorf("position: %w", err)
	}

	f := Form{
		Position:      max(position, 1),
		Duration:      prevDuration,
		StartDateTime: prevStart,
		EndDateTime:   prevEnd,
	}
	f = Reduce(f, NameChanged{Name: values.Get(FieldName)})
	f = Reduce(f, SubjectChanged{Subject: client.Subject(values.Get(FieldSubject))})

	if raw := values.Get(FieldStart); raw != "" {
		start, err := parseInput(raw, loc)
		if err != nil {
			return Form{}, fmt.Errorf("start: %w", err)
		}
		if !start.Equal(prevStart) {
			f = Reduce(f, StartChanged{At: start})
		}
	}
	if raw := values.Get(FieldEnd); raw != "" {
		end, err := parseInput(raw, loc)
		if err != nil {
			return Form{}, fmt.Errorf("end: %w", err)
		}
		if !end.Equal(prevEnd) {
			f = Reduce(f, EndChanged{At: end})
		}
	}
	duration, err := parseInt(values.Get(FieldDuration), f.Duration)
	if err != nil {
		return Form{}, fmt.Errorf("duration: %w", err)
	}
	if duration != prevDuration {
		f = Reduce(f, DurationChanged{Minutes: duration})
	}

	var attendees []string
	for _, id := range values[FieldAttendees] {
		if id = strings.TrimSpace(id); id != "" {
			attendees = append(attendees, id)
		}
	}
	f = Reduce(f, AttendeesChanged{Attendees: attendees})
	return f, nil
}

// FormatInput renders t for a datetime-local input.
func FormatInput(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(InputLayout)
}

func parseInput(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(InputLayout, raw, loc)
}

func parseInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
