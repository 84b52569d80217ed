package client

import (
	"errors"
	"strings"
)

// Subject is the kind of class a credit can be spent on.
type Subject string

const (
	SubjectMat            Subject = "MAT"
	SubjectMachineDuo     Subject = "MACHINE_DUO"
	SubjectMachineTrio    Subject = "MACHINE_TRIO"
	SubjectMachinePrivate Subject = "MACHINE_PRIVATE"
)

// Subjects lists every subject in display order.
var Subjects = []Subject{SubjectMat, SubjectMachineDuo, SubjectMachineTrio, SubjectMachinePrivate}

var subjectLabels = map[Subject]string{
	SubjectMat:            "Mat",
	SubjectMachineDuo:     "Machine duo",
	SubjectMachineTrio:    "Machine trio",
	SubjectMachinePrivate: "Machine private",
}

// Valid reports whether s is a known subject.
func (s Subject) Valid() bool {
	_, ok := subjectLabels[s]
	return ok
}

// Label returns the human readable subject name.
func (s Subject) Label() string {
	if l, ok := subjectLabels[s]; ok {
		return l
	}
	return string(s)
}

// Domain errors
var (
	ErrEmptyFirstname   = errors.New("firstname cannot be empty")
	ErrEmptyLastname    = errors.New("lastname cannot be empty")
	ErrInvalidSubject   = errors.New("subject must be one of MAT, MACHINE_DUO, MACHINE_TRIO, MACHINE_PRIVATE")
	ErrDuplicateSubject = errors.New("client holds more than one credits entry for a subject")
)

// Credits is a per-subject balance.
type Credits struct {
	Value   int
	Subject Subject
}

// Client is a studio customer.
type Client struct {
	ID        string
	Firstname string
	Lastname  string
	Credits   []Credits
}

// FullName returns "Firstname Lastname".
func (c Client) FullName() string {
	return strings.TrimSpace(c.Firstname + " " + c.Lastname)
}

// Validate checks the client data.
// PRE: Client is populated
// POST: Returns nil if valid, error otherwise
// INVARIANT: at most one credits entry per subject
func (c *Client) Validate() error {
	if strings.TrimSpace(c.Firstname) == "" {
		return ErrEmptyFirstname
	}
	if strings.TrimSpace(c.Lastname) == "" {
		return ErrEmptyLastname
	}
	seen := make(map[Subject]bool, len(c.Credits))
	for _, cr := range c.Credits {
		if !cr.Subject.Valid() {
			return ErrInvalidSubject
		}
		if seen[cr.Subject] {
			return ErrDuplicateSubject
		}
		seen[cr.Subject] = true
	}
	return nil
}

// AddCredits increments the entry for subject, or appends one if the client
// has none yet.
// POST: exactly one entry exists for subject
func (c *Client) AddCredits(value int, subject Subject) {
	for i := range c.Credits {
		if c.Credits[i].Subject == subject {
			c.Credits[i].Value += value
			return
		}
	}
	c.Credits = append(c.Credits, Credits{Value: value, Subject: subject})
}

// CreditsFor returns the balance for subject (zero when absent).
func (c Client) CreditsFor(subject Subject) int {
	for _, cr := range c.Credits {
		if cr.Subject == subject {
			return cr.Value
		}
	}
	return 0
}

// Clone returns a copy of c that does not share the credits slice.
func (c Client) Clone() Client {
	out := c
	if c.Credits != nil {
		out.Credits = append([]Credits(nil), c.Credits...)
	}
	return out
}
