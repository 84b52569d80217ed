package web

import (
	"net/http"
	"time"

	"crmpilates/internal/adapters/http/middleware"
	"crmpilates/internal/application/store"
	"crmpilates/internal/domain/client"
	"crmpilates/internal/domain/scheduling"
)

// defaultClassHour is the start hour of a form opened from a calendar day.
const defaultClassHour = 9

type classroomView struct {
	Form      scheduling.Form
	Loc       *time.Location
	Clients   []client.Client
	CanSubmit bool
	Errors    []store.ErrorMessage
}

// handleNewClassroom handles GET (dialog) and POST (recompute or create) for
// /classrooms/new. Query on GET: date=YYYY-MM-DD preselects the start day.
func (s *Server) handleNewClassroom(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	loc := s.deps.Location

	switch r.Method {
	case http.MethodGet:
		start := s.deps.Now().In(loc).Add(scheduling.Granularity)
		if d, err := time.ParseInLocation(time.DateOnly, r.URL.Query().Get("date"), loc); err == nil {
			start = time.Date(d.Year(), d.Month(), d.Day(), defaultClassHour, 0, 0, 0, loc)
		}
		s.renderClassroomForm(w, r, sess, http.StatusOK, scheduling.NewForm(start), nil)

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		form, err := scheduling.FromValues(r.PostForm, loc)
		if err != nil {
			s.renderClassroomForm(w, r, sess, http.StatusBadRequest, scheduling.NewForm(s.deps.Now().In(loc)),
				[]store.ErrorMessage{{Message: err.Error(), Type: store.TypeValidation, Origin: "createClassroom"}})
			return
		}
		if r.PostFormValue("action") == "recompute" {
			s.renderClassroomForm(w, r, sess, http.StatusOK, form, nil)
			return
		}

		created, aerr := sess.State.CreateClassroom(r.Context(), form)
		if aerr != nil {
			s.renderClassroomForm(w, r, sess, http.StatusUnprocessableEntity, form, aerr.Messages)
			return
		}
		s.flash(w, r, FlashSuccess, "Classroom "+created.Name+" created")
		http.Redirect(w, r, "/calendar", http.StatusSeeOther)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) renderClassroomForm(w http.ResponseWriter, r *http.Request, sess middleware.Session, status int, form scheduling.Form, errs []store.ErrorMessage) {
	clients := sess.State.State().Clients
	if clients.Status == store.ClientsIdle {
		sess.State.FetchClients(r.Context())
		clients = sess.State.State().Clients
	}
	s.render(w, r, status, "classroom_form.html", "New classroom", classroomView{
		Form:      form,
		Loc:       s.deps.Location,
		Clients:   clients.Clients,
		CanSubmit: form.FieldsFilled(),
		Errors:    errs,
	})
}
