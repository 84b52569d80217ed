package web

import (
	"bytes"
	"embed"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	gsessions "github.com/gorilla/sessions"

	"crmpilates/internal/adapters/http/middleware"
	"crmpilates/internal/application/store"
	"crmpilates/internal/domain/classroom"
	"crmpilates/internal/domain/client"
	"crmpilates/internal/domain/scheduling"
	"crmpilates/internal/domain/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login.html", "calendar.html", "classroom_form.html", "clients.html"}

// snackbarTimeout is how long a flash stays on screen.
const snackbarTimeout = 6 * time.Second

const flashCookieName = "crm_flash"

// Flash kinds
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is one snackbar message.
type Flash struct {
	ID      string
	Kind    string
	Message string
}

func init() {
	gob.Register(Flash{})
}

// page is the data every template receives.
type page struct {
	Title     string
	CSRFField template.HTML
	Flashes   []Flash
	LoggedIn  bool
	Username  string
	Timeout   int // snackbar milliseconds
	Data      any
}

var templateFuncs = template.FuncMap{
	"subjects":     func() []client.Subject { return client.Subjects },
	"subjectLabel": func(s string) string { return client.Subject(s).Label() },
	"instant":      session.FormatInstant,
	"clock":        func(t time.Time, loc *time.Location) string { return t.In(loc).Format("15:04") },
	"dateInput":    scheduling.FormatInput,
	"durations":    func() []int { return classroom.AllowedDurations },
	"contains":     func(list []string, v string) bool { return slices.Contains(list, v) },
}

func parseTemplates() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tpl, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = tpl
	}
	return out, nil
}

// render executes a page inside the layout. Pending flashes are consumed.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	tpl, ok := s.templates[name]
	if !ok {
		internalError(w, fmt.Errorf("unknown template %q", name))
		return
	}
	p := page{
		Title:     title,
		CSRFField: csrf.TemplateField(r),
		Flashes:   s.popFlashes(w, r),
		Timeout:   int(snackbarTimeout / time.Millisecond),
		Data:      data,
	}
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok && sess.State != nil {
		p.LoggedIn = !sess.State.CurrentToken(r.Context()).IsEmpty()
		p.Username = sess.Username
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, p); err != nil {
		internalError(w, fmt.Errorf("render %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("internal_error", "error", err.Error())
	}
}

// --- flashes ---

func newFlashStore(key []byte, secure bool) *gsessions.CookieStore {
	fs := gsessions.NewCookieStore(key)
	fs.Options = &gsessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return fs
}

// flash queues messages for the next rendered page.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, kind string, messages ...string) {
	fs, err := s.flashes.Get(r, flashCookieName)
	if err != nil {
		slog.Warn("flash_cookie_reset", "error", err)
	}
	for _, m := range messages {
		fs.AddFlash(Flash{ID: uuid.NewString(), Kind: kind, Message: m})
	}
	if err := fs.Save(r, w); err != nil {
		slog.Error("flash_save_failed", "error", err)
	}
}

// flashErrors queues the messages of a rejected action.
func (s *Server) flashErrors(w http.ResponseWriter, r *http.Request, aerr *store.ActionError) {
	texts := make([]string, 0, len(aerr.Messages))
	for _, m := range aerr.Messages {
		texts = append(texts, m.Message)
	}
	if len(texts) == 0 {
		texts = append(texts, store.RequestFailed)
	}
	s.flash(w, r, FlashError, texts...)
}

func (s *Server) popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	fs, err := s.flashes.Get(r, flashCookieName)
	if err != nil {
		return nil
	}
	raw := fs.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := fs.Save(r, w); err != nil {
		slog.Error("flash_save_failed", "error", err)
	}
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}
