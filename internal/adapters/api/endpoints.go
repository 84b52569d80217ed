package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"crmpilates/internal/domain/classroom"
	"crmpilates/internal/domain/client"
	"crmpilates/internal/domain/session"
	"crmpilates/internal/domain/token"
)

// SessionsPath is the default sessions listing.
const SessionsPath = "/sessions"

// LinkHeader carries the pagination links of a sessions page.
const LinkHeader = "X-Link"

// ErrForeignLink is returned when a sessions link does not point at the sessions listing.
var ErrForeignLink = errors.New("link is not a sessions listing")

// --- wire shapes ---

type creditsDTO struct {
	Value   int    `json:"value"`
	Subject string `json:"subject"`
}

type clientDTO struct {
	ID        string       `json:"id,omitempty"`
	Firstname string       `json:"firstname"`
	Lastname  string       `json:"lastname"`
	Credits   []creditsDTO `json:"credits,omitempty"`
}

type attendeeCreditsDTO struct {
	Amount *int `json:"amount,omitempty"`
}

type attendeeDTO struct {
	ID         string              `json:"id"`
	Firstname  string              `json:"firstname"`
	Lastname   string              `json:"lastname"`
	Attendance string              `json:"attendance"`
	Credits    *attendeeCreditsDTO `json:"credits,omitempty"`
}

type scheduleDTO struct {
	Start string `json:"start"`
	Stop  string `json:"stop"`
}

type sessionDTO struct {
	ID          string        `json:"id,omitempty"`
	ClassroomID string        `json:"classroom_id"`
	Name        string        `json:"name"`
	Subject     string        `json:"subject"`
	Schedule    scheduleDTO   `json:"schedule"`
	Position    int           `json:"position"`
	Attendees   []attendeeDTO `json:"attendees"`
}

type durationDTO struct {
	Duration int    `json:"duration"`
	Unit     string `json:"unit"`
}

type classroomDTO struct {
	ID        string      `json:"id,omitempty"`
	Name      string      `json:"name"`
	Subject   string      `json:"subject"`
	Position  int         `json:"position"`
	StartDate string      `json:"start_date"`
	StopDate  *string     `json:"stop_date"`
	Duration  durationDTO `json:"duration"`
	Attendees []string    `json:"attendees"`
}

func (d clientDTO) domain() client.Client {
	c := client.Client{ID: d.ID, Firstname: d.Firstname, Lastname: d.Lastname}
	for _, cr := range d.Credits {
		c.Credits = append(c.Credits, client.Credits{Value: cr.Value, Subject: client.Subject(cr.Subject)})
	}
	return c
}

func (d sessionDTO) domain(loc *time.Location) (session.Session, error) {
	start, err := session.ParseInstant(d.Schedule.Start, loc)
	if err != nil {
		return session.Session{}, fmt.Errorf("session %s start: %w", d.ID, err)
	}
	var stop time.Time
	if d.Schedule.Stop != "" {
		if stop, err = session.ParseInstant(d.Schedule.Stop, loc); err != nil {
			return session.Session{}, fmt.Errorf("session %s stop: %w", d.ID, err)
		}
	}
	s := session.Session{
		ID:          d.ID,
		ClassroomID: d.ClassroomID,
		Name:        d.Name,
		Subject:     d.Subject,
		Schedule:    session.Schedule{Start: start, Stop: stop},
		Position:    d.Position,
		Attendees:   make([]session.Attendee, 0, len(d.Attendees)),
	}
	for _, a := range d.Attendees {
		att := session.Attendee{
			ID:         a.ID,
			Firstname:  a.Firstname,
			Lastname:   a.Lastname,
			Attendance: session.Attendance(a.Attendance),
		}
		if a.Credits != nil {
			att.Credits = &session.AttendeeCredits{Amount: a.Credits.Amount}
		}
		s.Attendees = append(s.Attendees, att)
	}
	return s, nil
}

func (d classroomDTO) domain(loc *time.Location) (classroom.Classroom, error) {
	c := classroom.Classroom{
		ID:        d.ID,
		Name:      d.Name,
		Subject:   client.Subject(d.Subject),
		Position:  d.Position,
		Duration:  classroom.Duration{Duration: d.Duration.Duration, Unit: d.Duration.Unit},
		Attendees: d.Attendees,
	}
	var err error
	if d.StartDate != "" {
		if c.Schedule.Start, err = session.ParseInstant(d.StartDate, loc); err != nil {
			return classroom.Classroom{}, fmt.Errorf("classroom start: %w", err)
		}
	}
	if d.StopDate != nil && *d.StopDate != "" {
		if c.Schedule.Stop, err = session.ParseInstant(*d.StopDate, loc); err != nil {
			return classroom.Classroom{}, fmt.Errorf("classroom stop: %w", err)
		}
	}
	return c, nil
}

func decode[T any](resp Response, what string) (T, error) {
	var v T
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", what, err)
	}
	return v, nil
}

// --- endpoints ---

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (token.Token, error) {
	resp, err := c.Request(ctx, "/token", RequestOptions{Body: map[string]string{
		"username": username,
		"password": password,
	}})
	if err != nil {
		return token.Token{}, err
	}
	t, err := decode[token.Token](resp, "token")
	if err != nil {
		return token.Token{}, err
	}
	if t.Type == "" {
		t.Type = token.TypeBearer
	}
	return t, nil
}

// FetchClients lists every client.
func (c *Client) FetchClients(ctx context.Context) ([]client.Client, error) {
	resp, err := c.Request(ctx, "/clients", RequestOptions{})
	if err != nil {
		return nil, err
	}
	dtos, err := decode[[]clientDTO](resp, "clients")
	if err != nil {
		return nil, err
	}
	clients := make([]client.Client, 0, len(dtos))
	for _, d := range dtos {
		clients = append(clients, d.domain())
	}
	return clients, nil
}

// CreateClient posts a new client and returns it with its server-assigned id.
func (c *Client) CreateClient(ctx context.Context, in client.Client) (client.Client, error) {
	body := clientDTO{Firstname: in.Firstname, Lastname: in.Lastname}
	for _, cr := range in.Credits {
		body.Credits = append(body.Credits, creditsDTO{Value: cr.Value, Subject: string(cr.Subject)})
	}
	resp, err := c.Request(ctx, "/clients", RequestOptions{Body: body})
	if err != nil {
		return client.Client{}, err
	}
	d, err := decode[clientDTO](resp, "client")
	if err != nil {
		return client.Client{}, err
	}
	return d.domain(), nil
}

// AddCredits posts credits for one subject to a client.
func (c *Client) AddCredits(ctx context.Context, clientID string, value int, subject client.Subject) error {
	endpoint := "/clients/" + url.PathEscape(clientID) + "/credits"
	_, err := c.Request(ctx, endpoint, RequestOptions{Body: []creditsDTO{{Value: value, Subject: string(subject)}}})
	return err
}

// SessionsPage is one month of sessions plus its raw pagination header.
type SessionsPage struct {
	Sessions   []session.Session
	LinkHeader string
}

// FetchSessions GETs link, or the default listing when link is empty.
// PRE: link is empty or a backend-relative path under /sessions
func (c *Client) FetchSessions(ctx context.Context, link string) (SessionsPage, error) {
	endpoint, err := sessionsEndpoint(link)
	if err != nil {
		return SessionsPage{}, err
	}
	resp, err := c.Request(ctx, endpoint, RequestOptions{})
	if err != nil {
		return SessionsPage{}, err
	}
	dtos, err := decode[[]sessionDTO](resp, "sessions")
	if err != nil {
		return SessionsPage{}, err
	}
	page := SessionsPage{
		Sessions:   make([]session.Session, 0, len(dtos)),
		LinkHeader: resp.Header.Get(LinkHeader),
	}
	for _, d := range dtos {
		s, err := d.domain(c.opts.Location)
		if err != nil {
			return SessionsPage{}, err
		}
		page.Sessions = append(page.Sessions, s)
	}
	return page, nil
}

func sessionsEndpoint(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return SessionsPath, nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrForeignLink, err)
	}
	if u.IsAbs() || u.Host != "" || path.Clean(u.Path) != u.Path {
		return "", ErrForeignLink
	}
	if u.Path != SessionsPath && !strings.HasPrefix(u.Path, SessionsPath+"/") {
		return "", ErrForeignLink
	}
	return u.RequestURI(), nil
}

// Checkin registers and checks in an attendee for the session of classroomID at start.
func (c *Client) Checkin(ctx context.Context, classroomID string, start time.Time, attendeeID string) (session.Session, error) {
	return c.postSession(ctx, "/sessions/checkin", map[string]string{
		"classroom_id": classroomID,
		"session_date": session.FormatInstant(start),
		"attendee":     attendeeID,
	})
}

// Checkout reverts an attendee's checkin on a materialized session.
func (c *Client) Checkout(ctx context.Context, sessionID, attendeeID string) (session.Session, error) {
	endpoint := "/sessions/" + url.PathEscape(sessionID) + "/checkout"
	return c.postSession(ctx, endpoint, map[string]string{"attendee": attendeeID})
}

// Cancel removes an attendee from the session of classroomID at start.
func (c *Client) Cancel(ctx context.Context, classroomID string, start time.Time, attendeeID string) (session.Session, error) {
	endpoint := "/sessions/cancellation/" + url.PathEscape(attendeeID)
	return c.postSession(ctx, endpoint, map[string]string{
		"classroom_id": classroomID,
		"session_date": session.FormatInstant(start),
	})
}

func (c *Client) postSession(ctx context.Context, endpoint string, body map[string]string) (session.Session, error) {
	resp, err := c.Request(ctx, endpoint, RequestOptions{Body: body, Method: http.MethodPost})
	if err != nil {
		return session.Session{}, err
	}
	d, err := decode[sessionDTO](resp, "session")
	if err != nil {
		return session.Session{}, err
	}
	return d.domain(c.opts.Location)
}

// CreateClassroom schedules a classroom and returns it as created.
func (c *Client) CreateClassroom(ctx context.Context, in classroom.Classroom) (classroom.Classroom, error) {
	body := classroomDTO{
		Name:      in.Name,
		Subject:   string(in.Subject),
		Position:  in.Position,
		StartDate: session.FormatInstant(in.Schedule.Start),
		Duration:  durationDTO{Duration: in.Duration.Duration, Unit: in.Duration.Unit},
		Attendees: in.Attendees,
	}
	if body.Attendees == nil {
		body.Attendees = []string{}
	}
	if !in.Schedule.Stop.IsZero() {
		stop := session.FormatInstant(in.Schedule.Stop)
		body.StopDate = &stop
	}
	resp, err := c.Request(ctx, "/classrooms", RequestOptions{Body: body})
	if err != nil {
		return classroom.Classroom{}, err
	}
	d, err := decode[classroomDTO](resp, "classroom")
	if err != nil {
		return classroom.Classroom{}, err
	}
	return d.domain(c.opts.Location)
}
