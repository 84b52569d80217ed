package store

import (
	"context"
	"log/slog"

	"crmpilates/internal/domain/classroom"
	"crmpilates/internal/domain/scheduling"
)

// ClassroomsStatus is the status of the classrooms slice.
type ClassroomsStatus string

const (
	ClassroomsIdle               ClassroomsStatus = "idle"
	ClassroomsCreationInProgress ClassroomsStatus = "creationInProgress"
	ClassroomsCreationSucceeded  ClassroomsStatus = "creationSucceeded"
	ClassroomsCreationFailed     ClassroomsStatus = "creationFailed"
)

// ClassroomsState holds the classrooms scheduled in this session.
type ClassroomsState struct {
	Status     ClassroomsStatus
	Error      []ErrorMessage
	Classrooms []classroom.Classroom
}

// Classrooms slice actions.
type (
	ClassroomCreatePending   struct{}
	ClassroomCreateFulfilled struct{ Classroom classroom.Classroom }
	ClassroomCreateRejected  struct{ Errors []ErrorMessage }
)

func (ClassroomCreatePending) action()   {}
func (ClassroomCreateFulfilled) action() {}
func (ClassroomCreateRejected) action()  {}

func reduceClassrooms(st ClassroomsState, a Action) ClassroomsState {
	switch a := a.(type) {
	case ClassroomCreatePending:
		st.Status = ClassroomsCreationInProgress
		st.Error = nil
	case ClassroomCreateFulfilled:
		st.Status = ClassroomsCreationSucceeded
		st.Classrooms = append(append([]classroom.Classroom(nil), st.Classrooms...), a.Classroom)
	case ClassroomCreateRejected:
		st.Status = ClassroomsCreationFailed
		st.Error = a.Errors
	}
	return st
}

// CreateClassroom schedules the classroom described by form, then reloads
// the month on display so its sessions appear.
// PRE: form.FieldsFilled()
func (s *Store) CreateClassroom(ctx context.Context, form scheduling.Form) (classroom.Classroom, *ActionError) {
	const origin = "createClassroom"
	s.Dispatch(ClassroomCreatePending{})
	rejected := func(m []ErrorMessage) Action { return ClassroomCreateRejected{Errors: m} }

	c := form.Classroom()
	if err := c.Validate(); err != nil {
		return classroom.Classroom{}, s.reject(origin, &InputError{Err: err}, rejected)
	}

	created, err := s.deps.Gateway.CreateClassroom(s.authorized(ctx), c)
	if err != nil {
		return classroom.Classroom{}, s.reject(origin, err, rejected)
	}
	s.Dispatch(ClassroomCreateFulfilled{Classroom: created})
	slog.Info("classroom_event", "event", "classroom_created", "classroom_id", created.ID, "subject", created.Subject)

	var link string
	if l := s.State().Sessions.Link; l != nil {
		link = l.Current.URL
	}
	// Refetch failures land in the sessions slice.
	s.FetchSessions(ctx, link)
	return created, nil
}
