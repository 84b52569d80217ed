package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crmpilates/internal/adapters/http/middleware"
	"crmpilates/internal/application/orchestrators"
	"crmpilates/internal/application/store"
	"crmpilates/internal/domain/session"
)

var errMissingSlot = errors.New("classroom_id and start are required")

// slot identifies a session occurrence in a form post.
type slot struct {
	ClassroomID string
	Start       time.Time
}

func parseSlot(r *http.Request, loc *time.Location) (slot, error) {
	if err := r.ParseForm(); err != nil {
		return slot{}, err
	}
	classroomID := strings.TrimSpace(r.PostFormValue("classroom_id"))
	rawStart := r.PostFormValue("start")
	if classroomID == "" || rawStart == "" {
		return slot{}, errMissingSlot
	}
	start, err := session.ParseInstant(rawStart, loc)
	if err != nil {
		return slot{}, err
	}
	return slot{ClassroomID: classroomID, Start: start}, nil
}

// sessionURL returns the calendar with the drawer of the session at sl open.
// The key is read back from state because a checkin can assign an id.
func sessionURL(st store.SessionsState, sl slot, form session.FormKind) string {
	key := sl.ClassroomID + "@" + sl.Start.UTC().Format(time.RFC3339)
	for _, sn := range st.Sessions {
		if sn.SameSlot(sl.ClassroomID, sl.Start) {
			key = sn.Key()
			break
		}
	}
	u := "/calendar?session=" + url.QueryEscape(key)
	if form != session.FormNone {
		u += "&form=" + form.String()
	}
	return u
}

func attendeeName(sn session.Session, id string) string {
	if a, ok := sn.Attendee(id); ok && a.FullName() != "" {
		return a.FullName()
	}
	return "Attendee"
}

// handleCheckin handles POST /sessions/checkin
func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sl, err := parseSlot(r, s.deps.Location)
	attendeeID := r.PostFormValue("attendee_id")
	if err != nil || attendeeID == "" {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	s.checkin(w, r, sl, attendeeID, "", session.FormNone)
}

// handleAddAttendee handles POST /sessions/attendees.
// Adding an attendee is a checkin of the chosen client; a full session is
// refused without calling the API.
func (s *Server) handleAddAttendee(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, _ := middleware.GetSessionFromContext(r.Context())
	sl, err := parseSlot(r, s.deps.Location)
	if err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	st := sess.State.State().Sessions
	clientID := r.PostFormValue("client_id")
	if clientID == "" {
		s.flash(w, r, FlashError, "Choose a client to add")
		http.Redirect(w, r, sessionURL(st, sl, session.FormAddAttendee), http.StatusSeeOther)
		return
	}
	for _, sn := range st.Sessions {
		if sn.SameSlot(sl.ClassroomID, sl.Start) && sn.IsFull() {
			d := session.ReduceDetails(session.Details{Session: sn, Form: session.FormAddAttendee}, session.CloseForm{})
			s.flash(w, r, FlashError, "This session is full")
			http.Redirect(w, r, sessionURL(st, sl, d.Form), http.StatusSeeOther)
			return
		}
	}
	s.checkin(w, r, sl, clientID, "added to the session", session.FormAddAttendee)
}

// checkin checks attendeeID in and redirects back to the drawer. form is
// the drawer form the request came from; it stays open while seats remain.
func (s *Server) checkin(w http.ResponseWriter, r *http.Request, sl slot, attendeeID, verb string, form session.FormKind) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	updated, aerr := sess.State.SessionCheckin(r.Context(), sl.ClassroomID, sl.Start, attendeeID)
	if aerr != nil {
		s.flashErrors(w, r, aerr)
	} else {
		if verb == "" {
			verb = "checked in"
		}
		s.flash(w, r, FlashSuccess, attendeeName(updated, attendeeID)+" "+verb)
		s.alertLowCredits(r.Context(), updated, attendeeID)
		form = session.ReduceDetails(session.Details{Form: form}, session.SessionUpdated{Session: updated}).Form
	}
	http.Redirect(w, r, sessionURL(sess.State.State().Sessions, sl, form), http.StatusSeeOther)
}

// alertLowCredits notifies the staff when a checkin leaves the attendee short
// of credits. Failures are logged; the checkin itself already succeeded.
func (s *Server) alertLowCredits(ctx context.Context, updated session.Session, attendeeID string) {
	if s.deps.Notifier == nil {
		return
	}
	_, err := orchestrators.ExecuteCreditAlert(ctx,
		orchestrators.CreditAlertInput{Session: updated, AttendeeID: attendeeID},
		orchestrators.CreditAlertDeps{
			Sender:    s.deps.Notifier,
			To:        s.deps.AlertTo,
			Threshold: s.deps.LowCreditThreshold,
			Location:  s.deps.Location,
		})
	if err != nil {
		slog.Warn("credit_alert_skipped", "attendee_id", attendeeID, "error", err)
	}
}

// handleCheckout handles POST /sessions/checkout
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, _ := middleware.GetSessionFromContext(r.Context())
	sl, err := parseSlot(r, s.deps.Location)
	sessionID := r.PostFormValue("session_id")
	attendeeID := r.PostFormValue("attendee_id")
	if err != nil || sessionID == "" || attendeeID == "" {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	name := "Attendee"
	if sn, ok := sess.State.State().Sessions.SessionByKey(sessionID); ok {
		name = attendeeName(sn, attendeeID)
	}
	if aerr := sess.State.SessionCheckout(r.Context(), sessionID, attendeeID); aerr != nil {
		s.flashErrors(w, r, aerr)
	} else {
		s.flash(w, r, FlashSuccess, name+" checked out")
	}
	http.Redirect(w, r, sessionURL(sess.State.State().Sessions, sl, session.FormNone), http.StatusSeeOther)
}

// handleCancel handles POST /sessions/cancel
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, _ := middleware.GetSessionFromContext(r.Context())
	sl, err := parseSlot(r, s.deps.Location)
	attendeeID := r.PostFormValue("attendee_id")
	if err != nil || attendeeID == "" {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	name := "Attendee"
	for _, sn := range sess.State.State().Sessions.Sessions {
		if sn.SameSlot(sl.ClassroomID, sl.Start) {
			name = attendeeName(sn, attendeeID)
		}
	}
	if aerr := sess.State.SessionCancel(r.Context(), sl.ClassroomID, sl.Start, attendeeID); aerr != nil {
		s.flashErrors(w, r, aerr)
	} else {
		s.flash(w, r, FlashSuccess, name+" removed from the session")
	}
	http.Redirect(w, r, sessionURL(sess.State.State().Sessions, sl, session.FormNone), http.StatusSeeOther)
}
