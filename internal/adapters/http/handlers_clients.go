package web

import (
	"net/http"
	"strconv"
	"strings"

	"crmpilates/internal/adapters/http/middleware"
	"crmpilates/internal/application/listutil"
	"crmpilates/internal/application/store"
	"crmpilates/internal/domain/client"
)

const clientsPath = "/clients"

type clientsView struct {
	Clients []client.Client // current page
	Query   listutil.Query
	Page    listutil.PageInfo
	Path    string
	Errors  []store.ErrorMessage
	Draft   store.NewClientInput
}

func newClientsView(all []client.Client, q listutil.Query) clientsView {
	rows, info := listutil.Apply(all, q)
	return clientsView{Clients: rows, Query: q, Page: info, Path: clientsPath}
}

// handleClients handles GET (list) and POST (create) for /clients.
// Query on GET: q (name search), sort, dir, page, per_page.
func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		var errs []store.ErrorMessage
		if aerr := sess.State.FetchClients(r.Context()); aerr != nil {
			errs = aerr.Messages
		}
		view := newClientsView(sess.State.State().Clients.Clients, listutil.ParseQuery(r.URL.Query()))
		view.Errors = errs
		s.render(w, r, http.StatusOK, "clients.html", "Clients", view)

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input, errs := newClientInput(r)
		if len(errs) == 0 {
			created, aerr := sess.State.CreateClient(r.Context(), input)
			if aerr == nil {
				s.flash(w, r, FlashSuccess, "Client "+created.FullName()+" created")
				http.Redirect(w, r, clientsPath, http.StatusSeeOther)
				return
			}
			errs = aerr.Messages
		}
		view := newClientsView(sess.State.State().Clients.Clients, listutil.ParseQuery(r.URL.Query()))
		view.Errors = errs
		view.Draft = input
		s.render(w, r, http.StatusUnprocessableEntity, "clients.html", "Clients", view)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// newClientInput reads the creation form. Credit fields are named
// credits_<SUBJECT>; empty and zero fields are skipped.
func newClientInput(r *http.Request) (store.NewClientInput, []store.ErrorMessage) {
	input := store.NewClientInput{
		Firstname: strings.TrimSpace(r.PostFormValue("firstname")),
		Lastname:  strings.TrimSpace(r.PostFormValue("lastname")),
	}
	var errs []store.ErrorMessage
	for _, subject := range client.Subjects {
		raw := strings.TrimSpace(r.PostFormValue("credits_" + string(subject)))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, store.ErrorMessage{
				Message: subject.Label() + " credits must be a number",
				Type:    store.TypeValidation,
				Origin:  "createClient",
			})
			continue
		}
		if value != 0 {
			input.Credits = append(input.Credits, store.CreditsInput{Value: value, Subject: subject})
		}
	}
	return input, errs
}

// handleAddCredits handles POST /clients/credits
func (s *Server) handleAddCredits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, _ := middleware.GetSessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	clientID := r.PostFormValue("client_id")
	value, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("value")))
	if clientID == "" || err != nil {
		s.flash(w, r, FlashError, "Enter a number of credits")
		http.Redirect(w, r, clientsPath, http.StatusSeeOther)
		return
	}
	subject := client.Subject(r.PostFormValue("subject"))

	if aerr := sess.State.AddCredits(r.Context(), clientID, store.CreditsInput{Value: value, Subject: subject}); aerr != nil {
		s.flashErrors(w, r, aerr)
	} else {
		name := "client"
		if c, ok := sess.State.State().Clients.ClientByID(clientID); ok {
			name = c.FullName()
		}
		s.flash(w, r, FlashSuccess, strconv.Itoa(value)+" "+subject.Label()+" credits added to "+name)
	}
	http.Redirect(w, r, clientsPath, http.StatusSeeOther)
}
