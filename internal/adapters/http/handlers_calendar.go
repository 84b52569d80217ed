package web

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"crmpilates/internal/adapters/http/middleware"
	"crmpilates/internal/application/store"
	"crmpilates/internal/domain/client"
	"crmpilates/internal/domain/session"
)

const monthLayout = "2006-01"

type sessionCard struct {
	Key       string
	Name      string
	Subject   string
	Start     time.Time
	Stop      time.Time
	Booked    int
	Position  int
	CheckedIn int
	Full      bool
}

type dayCell struct {
	Date     time.Time
	InMonth  bool
	Today    bool
	Sessions []sessionCard
}

type attendeeRow struct {
	ID        string
	Name      string
	CheckedIn bool
	Credits   string // "" when the backend reported none
}

type drawerView struct {
	Key         string
	SessionID   string
	ClassroomID string
	Start       time.Time
	Name        string
	Subject     string
	Position    int
	Attendees   []attendeeRow
	FormOpen    bool
	CanAdd      bool
	Candidates  []client.Client
}

type calendarView struct {
	Month   time.Time
	Weeks   [][]dayCell
	PrevURL string
	NextURL string
	Loading bool
	Errors  []store.ErrorMessage
	Drawer  *drawerView
	Loc     *time.Location
}

// handleCalendar renders the monthly session grid and the optional drawer.
// Query: link (sessions page to show), session (key of the drawer session),
// form=add-attendee (open the add-attendee form in the drawer).
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, _ := middleware.GetSessionFromContext(r.Context())
	q := r.URL.Query()
	link := q.Get("link")

	sess.State.FetchSessions(r.Context(), fetchLink(sess.State.State().Sessions, link))
	st := sess.State.State()

	loc := s.deps.Location
	now := s.deps.Now().In(loc)
	month := displayedMonth(st.Sessions, link, now, loc)

	view := calendarView{
		Month:   month,
		Weeks:   monthGrid(st.Sessions, month, now, loc),
		Loading: st.Sessions.Status == store.SessionsLoading,
		Loc:     loc,
	}
	if st.Sessions.Status == store.SessionsFailed {
		view.Errors = st.Sessions.Error
	}
	if l := st.Sessions.Link; l != nil {
		if l.Previous.URL != "" {
			view.PrevURL = "/calendar?link=" + url.QueryEscape(l.Previous.URL)
		}
		if l.Next.URL != "" {
			view.NextURL = "/calendar?link=" + url.QueryEscape(l.Next.URL)
		}
	}

	if key := q.Get("session"); key != "" {
		if found, ok := st.Sessions.SessionByKey(key); ok {
			details := session.NewDetails(found)
			if q.Get("form") == session.FormAddAttendee.String() {
				details = session.ReduceDetails(details, session.OpenAddAttendee{})
			}
			view.Drawer = s.drawer(r, sess, details)
		}
	}

	s.render(w, r, http.StatusOK, "calendar.html", month.Format("January 2006"), view)
}

// fetchLink picks the sessions page to load on every calendar view: the
// requested link, else the page on screen, else the backend default.
func fetchLink(st store.SessionsState, link string) string {
	if link != "" {
		return link
	}
	if st.Link != nil {
		return st.Link.Current.URL
	}
	return ""
}

// displayedMonth picks the month from the current link, the requested link,
// the loaded sessions, or today, in that order.
func displayedMonth(st store.SessionsState, link string, now time.Time, loc *time.Location) time.Time {
	candidates := []string{st.Month()}
	if u, err := url.Parse(link); err == nil {
		candidates = append(candidates, u.Query().Get("month"))
	}
	for _, c := range candidates {
		if m, err := time.ParseInLocation(monthLayout, c, loc); err == nil {
			return m
		}
	}
	if len(st.Sessions) > 0 {
		first := st.Sessions[0].Schedule.Start.In(loc)
		return time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, loc)
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
}

// monthGrid lays out month as Monday-first weeks.
// POST: every week has 7 days; days outside month have InMonth false
func monthGrid(st store.SessionsState, month, now time.Time, loc *time.Location) [][]dayCell {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, loc)
	offset := (int(first.Weekday()) + 6) % 7
	day := first.AddDate(0, 0, -offset)

	var weeks [][]dayCell
	for {
		week := make([]dayCell, 0, 7)
		for range 7 {
			cell := dayCell{
				Date:    day,
				InMonth: day.Month() == first.Month(),
				Today:   sameDay(day, now),
			}
			for _, sn := range st.SessionsForDay(day, loc) {
				cell.Sessions = append(cell.Sessions, card(sn))
			}
			week = append(week, cell)
			day = day.AddDate(0, 0, 1)
		}
		weeks = append(weeks, week)
		if day.Month() != first.Month() {
			break
		}
	}
	return weeks
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func card(sn session.Session) sessionCard {
	return sessionCard{
		Key:       sn.Key(),
		Name:      sn.Name,
		Subject:   sn.Subject,
		Start:     sn.Schedule.Start,
		Stop:      sn.Schedule.Stop,
		Booked:    len(sn.Attendees),
		Position:  sn.Position,
		CheckedIn: sn.CheckedInCount(),
		Full:      sn.IsFull(),
	}
}

// drawer builds the session details panel. The client list is loaded the
// first time the add-attendee form is opened.
func (s *Server) drawer(r *http.Request, sess middleware.Session, d session.Details) *drawerView {
	sn := d.Session
	view := &drawerView{
		Key:         sn.Key(),
		SessionID:   sn.ID,
		ClassroomID: sn.ClassroomID,
		Start:       sn.Schedule.Start,
		Name:        sn.Name,
		Subject:     sn.Subject,
		Position:    sn.Position,
		FormOpen:    d.Form == session.FormAddAttendee,
		CanAdd:      d.CanAddAttendee(),
	}
	for _, a := range sn.Attendees {
		row := attendeeRow{ID: a.ID, Name: a.FullName(), CheckedIn: a.IsCheckedIn()}
		if left, ok := a.RemainingCredits(); ok {
			row.Credits = strconv.Itoa(left)
		}
		view.Attendees = append(view.Attendees, row)
	}

	if view.FormOpen {
		clients := sess.State.State().Clients
		if clients.Status == store.ClientsIdle || clients.Status == store.ClientsFailed {
			sess.State.FetchClients(r.Context())
			clients = sess.State.State().Clients
		}
		for _, c := range clients.Clients {
			onRoster := slices.ContainsFunc(sn.Attendees, func(a session.Attendee) bool { return a.ID == c.ID })
			if !onRoster {
				view.Candidates = append(view.Candidates, c)
			}
		}
	}
	return view
}
