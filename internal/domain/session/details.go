package session

// FormKind says which form, if any, is open in the session details drawer.
type FormKind int

const (
	FormNone FormKind = iota
	FormAddAttendee
)

// String returns the template-facing name of the form.
func (f FormKind) String() string {
	switch f {
	case FormAddAttendee:
		return "add-attendee"
	default:
		return "none"
	}
}

// Details is the drawer state for one session.
type Details struct {
	Session Session
	Form    FormKind
}

// DetailsAction is an event applied to Details.
type DetailsAction interface {
	detailsAction()
}

// OpenAddAttendee asks for the add-attendee form.
type OpenAddAttendee struct{}

// CloseForm closes whatever form is open.
type CloseForm struct{}

// SessionUpdated replaces the session after a server response.
type SessionUpdated struct {
	Session Session
}

func (OpenAddAttendee) detailsAction() {}
func (CloseForm) detailsAction()       {}
func (SessionUpdated) detailsAction()  {}

// NewDetails returns closed-drawer state for s.
func NewDetails(s Session) Details {
	return Details{Session: s, Form: FormNone}
}

// CanAddAttendee reports whether the add button is enabled.
// INVARIANT: false once len(Attendees) == Position
func (d Details) CanAddAttendee() bool {
	return len(d.Session.Attendees) < d.Session.Position
}

// ReduceDetails applies an action to drawer state.
// Opening the add-attendee form on a full session is ignored, and an update
// that fills the session closes the form.
func ReduceDetails(d Details, action DetailsAction) Details {
	switch a := action.(type) {
	case OpenAddAttendee:
		if !d.CanAddAttendee() {
			return d
		}
		d.Form = FormAddAttendee
	case CloseForm:
		d.Form = FormNone
	case SessionUpdated:
		d.Session = a.Session
		if d.Form == FormAddAttendee && !d.CanAddAttendee() {
			d.Form = FormNone
		}
	}
	return d
}
