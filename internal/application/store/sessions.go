package store

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"crmpilates/internal/domain/session"
)

// SessionsStatus is the one shared status of the sessions slice.
// Only the most recent operation's status is visible.
type SessionsStatus string

const (
	SessionsIdle               SessionsStatus = "idle"
	SessionsLoading            SessionsStatus = "loading"
	SessionsSucceeded          SessionsStatus = "succeeded"
	SessionsFailed             SessionsStatus = "failed"
	SessionsCheckinInProgress  SessionsStatus = "checkinInProgress"
	SessionsCheckinSucceeded   SessionsStatus = "checkinSucceeded"
	SessionsCheckinFailed      SessionsStatus = "checkinFailed"
	SessionsCheckoutInProgress SessionsStatus = "checkoutInProgress"
	SessionsCheckoutSucceeded  SessionsStatus = "checkoutSucceeded"
	SessionsCheckoutFailed     SessionsStatus = "checkoutFailed"
	SessionsCancelInProgress   SessionsStatus = "cancelInProgress"
	SessionsCancelSucceeded    SessionsStatus = "cancelSucceeded"
	SessionsCancelFailed       SessionsStatus = "cancelFailed"
)

// SessionsState is the calendar month on display.
type SessionsState struct {
	Status   SessionsStatus
	Error    []ErrorMessage
	Sessions []session.Session
	Link     *session.SessionsLink
}

// Sessions slice actions.
type (
	SessionsFetchPending   struct{}
	SessionsFetchFulfilled struct {
		Sessions []session.Session
		Link     *session.SessionsLink // nil keeps the previous link
	}
	SessionsFetchRejected struct{ Errors []ErrorMessage }

	CheckinPending   struct{}
	CheckinFulfilled struct {
		ClassroomID string
		Start       time.Time
		Session     session.Session
	}
	CheckinRejected struct{ Errors []ErrorMessage }

	CheckoutPending   struct{}
	CheckoutFulfilled struct{ Session session.Session }
	CheckoutRejected  struct{ Errors []ErrorMessage }

	CancelPending   struct{}
	CancelFulfilled struct {
		ClassroomID string
		Start       time.Time
		AttendeeID  string
		Session     session.Session
	}
	CancelRejected struct{ Errors []ErrorMessage }
)

func (SessionsFetchPending) action()   {}
func (SessionsFetchFulfilled) action() {}
func (SessionsFetchRejected) action()  {}
func (CheckinPending) action()         {}
func (CheckinFulfilled) action()       {}
func (CheckinRejected) action()        {}
func (CheckoutPending) action()        {}
func (CheckoutFulfilled) action()      {}
func (CheckoutRejected) action()       {}
func (CancelPending) action()          {}
func (CancelFulfilled) action()        {}
func (CancelRejected) action()         {}

func reduceSessions(st SessionsState, a Action) SessionsState {
	switch a := a.(type) {
	case SessionsFetchPending:
		st.Status = SessionsLoading
		st.Error = nil
	case SessionsFetchFulfilled:
		st.Status = SessionsSucceeded
		st.Sessions = a.Sessions
		if a.Link != nil {
			st.Link = a.Link
		}
	case SessionsFetchRejected:
		st.Status = SessionsFailed
		st.Error = a.Errors

	case CheckinPending:
		st.Status = SessionsCheckinInProgress
		st.Error = nil
	case CheckinFulfilled:
		st.Status = SessionsCheckinSucceeded
		st.Sessions = replaceMatching(st.Sessions, responseTarget(a.Session, a.ClassroomID, a.Start), func(s *session.Session) {
			if a.Session.ID != "" {
				s.ID = a.Session.ID
			}
			s.Attendees = a.Session.Attendees
		})
	case CheckinRejected:
		st.Status = SessionsCheckinFailed
		st.Error = a.Errors

	case CheckoutPending:
		st.Status = SessionsCheckoutInProgress
		st.Error = nil
	case CheckoutFulfilled:
		st.Status = SessionsCheckoutSucceeded
		st.Sessions = replaceMatching(st.Sessions, func(s *session.Session) bool {
			return a.Session.ID != "" && s.ID == a.Session.ID
		}, func(s *session.Session) {
			s.Attendees = a.Session.Attendees
		})
	case CheckoutRejected:
		st.Status = SessionsCheckoutFailed
		st.Error = a.Errors

	case CancelPending:
		st.Status = SessionsCancelInProgress
		st.Error = nil
	case CancelFulfilled:
		st.Status = SessionsCancelSucceeded
		st.Sessions = replaceMatching(st.Sessions, responseTarget(a.Session, a.ClassroomID, a.Start), func(s *session.Session) {
			if a.Session.ID != "" {
				s.ID = a.Session.ID
			}
			roster := make([]session.Attendee, 0, len(a.Session.Attendees))
			for _, att := range a.Session.Attendees {
				if att.ID != a.AttendeeID {
					roster = append(roster, att)
				}
			}
			s.Attendees = roster
		})
	case CancelRejected:
		st.Status = SessionsCancelFailed
		st.Error = a.Errors
	}
	return st
}

// responseTarget matches the session a server response refers to: by id once
// both sides have one, otherwise by classroom and start.
func responseTarget(resp session.Session, classroomID string, start time.Time) func(*session.Session) bool {
	target := session.Session{ID: resp.ID, ClassroomID: classroomID, Schedule: session.Schedule{Start: start}}
	return func(s *session.Session) bool {
		return s.Matches(target)
	}
}

// replaceMatching returns a copy of sessions where the first session
// satisfying match has been passed through update.
func replaceMatching(sessions []session.Session, match func(*session.Session) bool, update func(*session.Session)) []session.Session {
	out := make([]session.Session, len(sessions))
	copy(out, sessions)
	for i := range out {
		if match(&out[i]) {
			s := out[i].Clone()
			update(&s)
			out[i] = s
			break
		}
	}
	return out
}

// FetchSessions loads one month of sessions; an empty link loads the default month.
// A malformed pagination header keeps the previous link.
func (s *Store) FetchSessions(ctx context.Context, link string) *ActionError {
	const origin = "fetchSessions"
	s.Dispatch(SessionsFetchPending{})

	page, err := s.deps.Gateway.FetchSessions(s.authorized(ctx), link)
	if err != nil {
		return s.reject(origin, err, func(m []ErrorMessage) Action { return SessionsFetchRejected{Errors: m} })
	}

	for i := range page.Sessions {
		if err := page.Sessions[i].Validate(); err != nil {
			slog.Warn("session_invalid", "key", page.Sessions[i].Key(), "error", err)
		}
	}

	var parsed *session.SessionsLink
	if l, err := session.ParseLink(page.LinkHeader); err != nil {
		slog.Warn("sessions_link_unparsed", "link", link, "header", page.LinkHeader, "error", err)
	} else {
		parsed = &l
	}
	s.Dispatch(SessionsFetchFulfilled{Sessions: page.Sessions, Link: parsed})
	return nil
}

// SessionCheckin checks an attendee into the session of classroomID at start.
// The matched session adopts the id the server assigned to it.
func (s *Store) SessionCheckin(ctx context.Context, classroomID string, start time.Time, attendeeID string) (session.Session, *ActionError) {
	const origin = "sessionCheckin"
	s.Dispatch(CheckinPending{})

	updated, err := s.deps.Gateway.Checkin(s.authorized(ctx), classroomID, start, attendeeID)
	if err != nil {
		return session.Session{}, s.reject(origin, err, func(m []ErrorMessage) Action { return CheckinRejected{Errors: m} })
	}
	s.Dispatch(CheckinFulfilled{ClassroomID: classroomID, Start: start, Session: updated})
	slog.Info("checkin_event", "event", "attendee_checked_in", "session_id", updated.ID, "classroom_id", classroomID, "attendee_id", attendeeID)
	return updated, nil
}

// SessionCheckout reverts the checkin of an attendee on a materialized session.
func (s *Store) SessionCheckout(ctx context.Context, sessionID, attendeeID string) *ActionError {
	const origin = "sessionCheckout"
	s.Dispatch(CheckoutPending{})

	updated, err := s.deps.Gateway.Checkout(s.authorized(ctx), sessionID, attendeeID)
	if err != nil {
		return s.reject(origin, err, func(m []ErrorMessage) Action { return CheckoutRejected{Errors: m} })
	}
	if updated.ID == "" {
		updated.ID = sessionID
	}
	s.Dispatch(CheckoutFulfilled{Session: updated})
	slog.Info("checkin_event", "event", "attendee_checked_out", "session_id", sessionID, "attendee_id", attendeeID)
	return nil
}

// SessionCancel removes an attendee from the session of classroomID at start.
func (s *Store) SessionCancel(ctx context.Context, classroomID string, start time.Time, attendeeID string) *ActionError {
	const origin = "sessionCancel"
	s.Dispatch(CancelPending{})

	updated, err := s.deps.Gateway.Cancel(s.authorized(ctx), classroomID, start, attendeeID)
	if err != nil {
		return s.reject(origin, err, func(m []ErrorMessage) Action { return CancelRejected{Errors: m} })
	}
	s.Dispatch(CancelFulfilled{ClassroomID: classroomID, Start: start, AttendeeID: attendeeID, Session: updated})
	slog.Info("checkin_event", "event", "attendee_cancelled", "session_id", updated.ID, "classroom_id", classroomID, "attendee_id", attendeeID)
	return nil
}

// --- selectors ---

// SessionsForDay returns the sessions starting on day (in loc), ordered by start.
func (st SessionsState) SessionsForDay(day time.Time, loc *time.Location) []session.Session {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := day.In(loc).Date()
	var out []session.Session
	for _, s := range st.Sessions {
		sy, sm, sd := s.Schedule.Start.In(loc).Date()
		if sy == y && sm == m && sd == d {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Schedule.Start.Before(out[j].Schedule.Start)
	})
	return out
}

// SessionByKey finds a session by its Key.
func (st SessionsState) SessionByKey(key string) (session.Session, bool) {
	for _, s := range st.Sessions {
		if s.Key() == key {
			return s, true
		}
	}
	return session.Session{}, false
}

// Month returns the month of the current link, or "" before the first load.
func (st SessionsState) Month() string {
	if st.Link == nil {
		return ""
	}
	return st.Link.Month()
}
