package store

import (
	"context"
	"log/slog"

	"crmpilates/internal/adapters/api"
	"crmpilates/internal/domain/client"
)

// ClientsStatus is the shared status of the clients slice.
type ClientsStatus string

const (
	ClientsIdle                 ClientsStatus = "idle"
	ClientsLoading              ClientsStatus = "loading"
	ClientsSucceeded            ClientsStatus = "succeeded"
	ClientsFailed               ClientsStatus = "failed"
	ClientsCreationInProgress   ClientsStatus = "creationInProgress"
	ClientsCreationSucceeded    ClientsStatus = "creationSucceeded"
	ClientsCreationFailed       ClientsStatus = "creationFailed"
	ClientsAddCreditsInProgress ClientsStatus = "addCreditsInProgress"
	ClientsAddCreditsSucceeded  ClientsStatus = "addCreditsSucceeded"
	ClientsAddCreditsFailed     ClientsStatus = "addCreditsFailed"
)

// ClientsState is the studio's client list.
type ClientsState struct {
	Status  ClientsStatus
	Error   []ErrorMessage
	Clients []client.Client
}

// Clients slice actions.
type (
	ClientsFetchPending   struct{}
	ClientsFetchFulfilled struct{ Clients []client.Client }
	ClientsFetchRejected  struct{ Errors []ErrorMessage }

	ClientCreatePending   struct{}
	ClientCreateFulfilled struct{ Client client.Client }
	ClientCreateRejected  struct{ Errors []ErrorMessage }

	CreditsAddPending   struct{}
	CreditsAddFulfilled struct {
		ClientID string
		Value    int
		Subject  client.Subject
	}
	CreditsAddRejected struct{ Errors []ErrorMessage }
)

func (ClientsFetchPending) action()   {}
func (ClientsFetchFulfilled) action() {}
func (ClientsFetchRejected) action()  {}
func (ClientCreatePending) action()   {}
func (ClientCreateFulfilled) action() {}
func (ClientCreateRejected) action()  {}
func (CreditsAddPending) action()     {}
func (CreditsAddFulfilled) action()   {}
func (CreditsAddRejected) action()    {}

func reduceClients(st ClientsState, a Action) ClientsState {
	switch a := a.(type) {
	case ClientsFetchPending:
		st.Status = ClientsLoading
		st.Error = nil
	case ClientsFetchFulfilled:
		st.Status = ClientsSucceeded
		st.Clients = a.Clients
	case ClientsFetchRejected:
		st.Status = ClientsFailed
		st.Error = a.Errors

	case ClientCreatePending:
		st.Status = ClientsCreationInProgress
		st.Error = nil
	case ClientCreateFulfilled:
		st.Status = ClientsCreationSucceeded
		st.Clients = append(append([]client.Client(nil), st.Clients...), a.Client)
	case ClientCreateRejected:
		st.Status = ClientsCreationFailed
		st.Error = a.Errors

	case CreditsAddPending:
		st.Status = ClientsAddCreditsInProgress
		st.Error = nil
	case CreditsAddFulfilled:
		st.Status = ClientsAddCreditsSucceeded
		clients := make([]client.Client, len(st.Clients))
		copy(clients, st.Clients)
		for i := range clients {
			if clients[i].ID == a.ClientID {
				c := clients[i].Clone()
				c.AddCredits(a.Value, a.Subject)
				clients[i] = c
				break
			}
		}
		st.Clients = clients
	case CreditsAddRejected:
		st.Status = ClientsAddCreditsFailed
		st.Error = a.Errors
	}
	return st
}

// NewClientInput is the client creation form.
type NewClientInput struct {
	Firstname string         `validate:"required"`
	Lastname  string         `validate:"required"`
	Credits   []CreditsInput `validate:"dive"`
}

// CreditsInput is one credits line of a form.
type CreditsInput struct {
	Value   int            `validate:"gt=0"`
	Subject client.Subject `validate:"required,oneof=MAT MACHINE_DUO MACHINE_TRIO MACHINE_PRIVATE"`
}

// FetchClients replaces the client list.
func (s *Store) FetchClients(ctx context.Context) *ActionError {
	const origin = "fetchClients"
	s.Dispatch(ClientsFetchPending{})

	clients, err := s.deps.Gateway.FetchClients(s.authorized(ctx))
	if err != nil {
		return s.reject(origin, err, func(m []ErrorMessage) Action { return ClientsFetchRejected{Errors: m} })
	}
	s.Dispatch(ClientsFetchFulfilled{Clients: clients})
	return nil
}

// CreateClient validates in, posts it and appends the created client.
func (s *Store) CreateClient(ctx context.Context, in NewClientInput) (client.Client, *ActionError) {
	const origin = "createClient"
	s.Dispatch(ClientCreatePending{})
	rejected := func(m []ErrorMessage) Action { return ClientCreateRejected{Errors: m} }

	if err := api.Validator().Struct(in); err != nil {
		return client.Client{}, s.reject(origin, err, rejected)
	}
	c := client.Client{Firstname: in.Firstname, Lastname: in.Lastname}
	for _, cr := range in.Credits {
		c.AddCredits(cr.Value, cr.Subject)
	}
	if err := c.Validate(); err != nil {
		return client.Client{}, s.reject(origin, &InputError{Err: err}, rejected)
	}

	created, err := s.deps.Gateway.CreateClient(s.authorized(ctx), c)
	if err != nil {
		return client.Client{}, s.reject(origin, err, rejected)
	}
	s.Dispatch(ClientCreateFulfilled{Client: created})
	slog.Info("client_event", "event", "client_created", "client_id", created.ID)
	return created, nil
}

// AddCredits posts credits and merges them into the matched client.
func (s *Store) AddCredits(ctx context.Context, clientID string, in CreditsInput) *ActionError {
	const origin = "addCredits"
	s.Dispatch(CreditsAddPending{})
	rejected := func(m []ErrorMessage) Action { return CreditsAddRejected{Errors: m} }

	if err := api.Validator().Struct(in); err != nil {
		return s.reject(origin, err, rejected)
	}
	if err := s.deps.Gateway.AddCredits(s.authorized(ctx), clientID, in.Value, in.Subject); err != nil {
		return s.reject(origin, err, rejected)
	}
	s.Dispatch(CreditsAddFulfilled{ClientID: clientID, Value: in.Value, Subject: in.Subject})
	slog.Info("client_event", "event", "credits_added", "client_id", clientID, "subject", in.Subject, "value", in.Value)
	return nil
}

// ClientByID finds a client in the list.
func (st ClientsState) ClientByID(id string) (client.Client, bool) {
	for _, c := range st.Clients {
		if c.ID == id {
			return c, true
		}
	}
	return client.Client{}, false
}
