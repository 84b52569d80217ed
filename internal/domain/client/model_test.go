package client_test

import (
	"errors"
	"reflect"
	"testing"

	"crmpilates/internal/domain/client"
)

// TestClient_AddCredits tests the merge-or-append rule.
func TestClient_AddCredits(t *testing.T) {
	c := client.Client{ID: "1", Credits: []client.Credits{{Value: 5, Subject: client.SubjectMat}}}

	c.AddCredits(10, client.SubjectMat)
	want := []client.Credits{{Value: 15, Subject: client.SubjectMat}}
	if !reflect.DeepEqual(c.Credits, want) {
		t.Fatalf("after same-subject add: %+v, want %+v", c.Credits, want)
	}

	c.AddCredits(10, client.SubjectMachineDuo)
	want = []client.Credits{
		{Value: 15, Subject: client.SubjectMat},
		{Value: 10, Subject: client.SubjectMachineDuo},
	}
	if !reflect.DeepEqual(c.Credits, want) {
		t.Fatalf("after new-subject add: %+v, want %+v", c.Credits, want)
	}
}

// TestClient_AddCredits_NoCredits verifies a client without credits gets one entry.
func TestClient_AddCredits_NoCredits(t *testing.T) {
	c := client.Client{ID: "1"}
	c.AddCredits(3, client.SubjectMachinePrivate)
	if got := c.CreditsFor(client.SubjectMachinePrivate); got != 3 {
		t.Errorf("CreditsFor() = %d, want 3", got)
	}
	if got := c.CreditsFor(client.SubjectMat); got != 0 {
		t.Errorf("CreditsFor(MAT) = %d, want 0", got)
	}
}

// TestClient_Validate tests client validation.
func TestClient_Validate(t *testing.T) {
	tests := []struct {
		name    string
		client  client.Client
		wantErr error
	}{
		{name: "valid", client: client.Client{Firstname: "Ada", Lastname: "Lovelace", Credits: []client.Credits{{Value: 2, Subject: client.SubjectMat}}}},
		{name: "no firstname", client: client.Client{Lastname: "Lovelace"}, wantErr: client.ErrEmptyFirstname},
		{name: "blank lastname", client: client.Client{Firstname: "Ada", Lastname: "  "}, wantErr: client.ErrEmptyLastname},
		{name: "unknown subject", client: client.Client{Firstname: "Ada", Lastname: "L", Credits: []client.Credits{{Subject: "YOGA"}}}, wantErr: client.ErrInvalidSubject},
		{
			name: "duplicate subject",
			client: client.Client{Firstname: "Ada", Lastname: "L", Credits: []client.Credits{
				{Value: 1, Subject: client.SubjectMat}, {Value: 2, Subject: client.SubjectMat},
			}},
			wantErr: client.ErrDuplicateSubject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.client.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestSubject_Label tests subject labels.
func TestSubject_Label(t *testing.T) {
	if got := client.SubjectMachineTrio.Label(); got != "Machine trio" {
		t.Errorf("Label() = %q", got)
	}
	if client.Subject("YOGA").Valid() {
		t.Error("YOGA should not be a valid subject")
	}
}
