package issues

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// Result messages for successful mutations.
const (
	ResultUpdated = "successfully updated"
	ResultDeleted = "successfully deleted"
)

// Result is the payload of a successful update or delete.
type Result struct {
	Result string `json:"result"`
	ID     string `json:"_id,omitempty"`
}

// ErrorResult is the payload of a failed operation. ID echoes the requested
// issue for update and delete failures.
type ErrorResult struct {
	Error string `json:"error"`
	ID    string `json:"_id,omitempty"`
}

// Service implements issue create, list, update and delete on top of a Store.
type Service struct {
	store store.Store
	log   zerolog.Logger
	clock *clock
}

// NewService returns a Service backed by s.
func NewService(s store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, log: log, clock: newClock(time.Now)}
}

// Create stores a new open issue in project and returns it.
func (s *Service) Create(ctx context.Context, project string, in CreateInput) (*models.Issue, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	issue := &models.Issue{
		ID:         models.NewID(),
		Project:    project,
		Title:      in.Title,
		Text:       in.Text,
		CreatedBy:  in.CreatedBy,
		AssignedTo: in.AssignedTo,
		StatusText: in.StatusText,
		Open:       true,
		CreatedOn:  now,
		UpdatedOn:  now,
	}
	if err := s.store.InsertIssue(ctx, issue); err != nil {
		s.log.Error().Err(err).Str("project", project).Msg("insert issue")
		return nil, &failure{reason: ErrCreateFailed, cause: err}
	}

	s.log.Debug().Str("project", project).Str("id", issue.ID.Hex()).Msg("issue created")
	return issue, nil
}

// List returns the project's issues matching filter in insertion order. An
// unknown project yields an empty, non-nil slice.
func (s *Service) List(ctx context.Context, project string, filter store.IssueFilter) ([]*models.Issue, error) {
	if filter.Unsatisfiable {
		return []*models.Issue{}, nil
	}
	found, err := s.store.FindIssues(ctx, project, filter)
	if err != nil {
		s.log.Error().Err(err).Str("project", project).Msg("find issues")
		return nil, &failure{reason: ErrReadFailed, cause: err}
	}
	if found == nil {
		found = []*models.Issue{}
	}
	return found, nil
}

// Update applies patch to the issue id in project and stamps updated_on.
func (s *Service) Update(ctx context.Context, project, id string, patch Patch) (Result, error) {
	if id == "" {
		return Result{}, ErrMissingID
	}
	if patch.Empty() {
		return Result{}, ErrNoUpdateFields
	}

	oid, err := models.ParseID(id)
	if err != nil {
		return Result{}, &failure{reason: ErrUpdateFailed, cause: err}
	}
	if err := patch.err(); err != nil {
		return Result{}, &failure{reason: ErrUpdateFailed, cause: err}
	}

	if err := s.store.UpdateIssue(ctx, project, oid, patch.toStore(s.clock.Now())); err != nil {
		s.log.Debug().Err(err).Str("project", project).Str("id", id).Msg("update issue")
		return Result{}, &failure{reason: ErrUpdateFailed, cause: err}
	}

	s.log.Debug().Str("project", project).Str("id", id).Msg("issue updated")
	return Result{Result: ResultUpdated, ID: id}, nil
}

// Delete removes the issue id from project.
func (s *Service) Delete(ctx context.Context, project, id string) (Result, error) {
	if id == "" {
		return Result{}, ErrMissingID
	}

	oid, err := models.ParseID(id)
	if err != nil {
		return Result{}, &failure{reason: ErrDeleteFailed, cause: err}
	}
	if err := s.store.DeleteIssue(ctx, project, oid); err != nil {
		s.log.Debug().Err(err).Str("project", project).Str("id", id).Msg("delete issue")
		return Result{}, &failure{reason: ErrDeleteFailed, cause: err}
	}

	s.log.Debug().Str("project", project).Str("id", id).Msg("issue deleted")
	return Result{Result: ResultDeleted, ID: id}, nil
}
