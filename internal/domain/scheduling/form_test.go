package scheduling_test

import (
	"net/url"
	"reflect"
	"testing"
	"time"

	"crmpilates/internal/domain/client"
	"crmpilates/internal/domain/scheduling"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation(scheduling.InputLayout, value, time.UTC)
	if err != nil {
		t.Fatalf("bad test time %q: %v", value, err)
	}
	return v
}

// TestReduce_DurationChanged moves the end date and keeps the start.
func TestReduce_DurationChanged(t *testing.T) {
	f := scheduling.Form{
		Position:      1,
		Duration:      60,
		StartDateTime: at(t, "2022-09-09T10:00"),
		EndDateTime:   at(t, "2022-09-09T11:00"),
	}

	got := scheduling.Reduce(f, scheduling.DurationChanged{Minutes: 75})

	if !got.EndDateTime.Equal(at(t, "2022-09-09T11:15")) {
		t.Errorf("EndDateTime = %v, want 2022-09-09T11:15", got.EndDateTime)
	}
	if !got.StartDateTime.Equal(f.StartDateTime) {
		t.Errorf("StartDateTime changed to %v", got.StartDateTime)
	}
	if got.Duration != 75 {
		t.Errorf("Duration = %d, want 75", got.Duration)
	}
}

// TestReduce_DurationChanged_KeepsEndDay re-anchors on the end's calendar day.
func TestReduce_DurationChanged_KeepsEndDay(t *testing.T) {
	f := scheduling.Form{
		StartDateTime: at(t, "2022-09-09T10:00"),
		EndDateTime:   at(t, "2022-09-30T11:00"),
	}
	got := scheduling.Reduce(f, scheduling.DurationChanged{Minutes: 45})
	if !got.EndDateTime.Equal(at(t, "2022-09-30T10:45")) {
		t.Errorf("EndDateTime = %v, want 2022-09-30T10:45", got.EndDateTime)
	}
}

// TestReduce_EndChanged rounds the end date and recomputes the duration.
func TestReduce_EndChanged(t *testing.T) {
	f := scheduling.Form{
		Duration:      60,
		StartDateTime: at(t, "2022-09-09T10:10"),
		EndDateTime:   at(t, "2022-09-09T11:10"),
	}

	got := scheduling.Reduce(f, scheduling.EndChanged{At: at(t, "2022-09-09T11:23")})

	if !got.EndDateTime.Equal(at(t, "2022-09-09T11:25")) {
		t.Errorf("EndDateTime = %v, want 11:25", got.EndDateTime)
	}
	if got.Duration != 75 {
		t.Errorf("Duration = %d, want 75", got.Duration)
	}
}

// TestReduce_StartChanged covers accepted and ignored recomputes.
func TestReduce_StartChanged(t *testing.T) {
	base := scheduling.Form{
		Duration:      60,
		StartDateTime: at(t, "2022-09-09T10:00"),
		EndDateTime:   at(t, "2022-09-09T11:00"),
	}

	tests := []struct {
		name         string
		start        string
		wantStart    string
		wantDuration int
	}{
		{name: "allowed span", start: "2022-09-09T10:29", wantStart: "2022-09-09T10:30", wantDuration: 30},
		{name: "span off allow-list keeps duration", start: "2022-09-09T10:08", wantStart: "2022-09-09T10:10", wantDuration: 60},
		{name: "start after end keeps duration", start: "2022-09-09T12:00", wantStart: "2022-09-09T12:00", wantDuration: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scheduling.Reduce(base, scheduling.StartChanged{At: at(t, tt.start)})
			if !got.StartDateTime.Equal(at(t, tt.wantStart)) {
				t.Errorf("StartDateTime = %v, want %s", got.StartDateTime, tt.wantStart)
			}
			if got.Duration != tt.wantDuration {
				t.Errorf("Duration = %d, want %d", got.Duration, tt.wantDuration)
			}
			if !got.EndDateTime.Equal(base.EndDateTime) {
				t.Errorf("EndDateTime changed to %v", got.EndDateTime)
			}
		})
	}
}

// TestReduce_AttendeesChanged grows the position but never shrinks it.
func TestReduce_AttendeesChanged(t *testing.T) {
	f := scheduling.Form{Position: 2}

	f = scheduling.Reduce(f, scheduling.AttendeesChanged{Attendees: []string{"1", "2", "3"}})
	if f.Position != 3 {
		t.Fatalf("Position = %d, want 3", f.Position)
	}

	f = scheduling.Reduce(f, scheduling.AttendeesChanged{Attendees: []string{"1"}})
	if f.Position != 3 {
		t.Errorf("Position = %d, want 3 (never shrinks)", f.Position)
	}
}

// TestForm_FieldsFilled tests the submit gate.
func TestForm_FieldsFilled(t *testing.T) {
	tests := []struct {
		name string
		form scheduling.Form
		want bool
	}{
		{name: "filled", form: scheduling.Form{ClassroomName: "Mat", Subject: client.SubjectMat, Duration: 45}, want: true},
		{name: "no name", form: scheduling.Form{Subject: client.SubjectMat, Duration: 45}},
		{name: "no subject", form: scheduling.Form{ClassroomName: "Mat", Duration: 45}},
		{name: "bad duration", form: scheduling.Form{ClassroomName: "Mat", Subject: client.SubjectMat, Duration: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.form.FieldsFilled(); got != tt.want {
				t.Errorf("FieldsFilled() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestFromValues replays the edits the dialog submission carries.
func TestFromValues(t *testing.T) {
	values := url.Values{
		scheduling.FieldName:         {"Morning mat"},
		scheduling.FieldSubject:      {"MAT"},
		scheduling.FieldPosition:     {"1"},
		scheduling.FieldPrevStart:    {"2022-09-09T10:10"},
		scheduling.FieldPrevEnd:      {"2022-09-09T11:10"},
		scheduling.FieldPrevDuration: {"60"},
		scheduling.FieldStart:        {"2022-09-09T10:10"},
		scheduling.FieldEnd:          {"2022-09-09T11:23"},
		scheduling.FieldDuration:     {"60"},
		scheduling.FieldAttendees:    {"c-1", "c-2", ""},
	}

	got, err := scheduling.FromValues(values, time.UTC)
	if err != nil {
		t.Fatalf("FromValues() error = %v", err)
	}
	if got.Duration != 75 {
		t.Errorf("Duration = %d, want 75", got.Duration)
	}
	if !got.EndDateTime.Equal(at(t, "2022-09-09T11:25")) {
		t.Errorf("EndDateTime = %v", got.EndDateTime)
	}
	if got.Position != 2 {
		t.Errorf("Position = %d, want 2", got.Position)
	}
	if !reflect.DeepEqual(got.Attendees, []string{"c-1", "c-2"}) {
		t.Errorf("Attendees = %v", got.Attendees)
	}
	if !got.FieldsFilled() {
		t.Error("expected fields filled")
	}

	c := got.Classroom()
	if c.Duration.Duration != 75 || c.Duration.Unit != "MINUTE" {
		t.Errorf("Classroom().Duration = %+v", c.Duration)
	}
}

// TestFromValues_BadInput rejects unparseable dates.
func TestFromValues_BadInput(t *testing.T) {
	values := url.Values{scheduling.FieldStart: {"tomorrow"}}
	if _, err := scheduling.FromValues(values, time.UTC); err == nil {
		t.Error("expected error for unparseable start")
	}
}
