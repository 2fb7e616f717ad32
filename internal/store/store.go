package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joescharf/issuetracker/internal/models"
)

// ErrNotFound is returned when no issue matches an id within a project.
var ErrNotFound = errors.New("issue not found")

// Supported backend drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// IssueFilter is a set of equality constraints on issue fields. Nil fields
// are unconstrained; all set fields must match.
type IssueFilter struct {
	ID         *models.ID
	Title      *string
	Text       *string
	CreatedBy  *string
	AssignedTo *string
	StatusText *string
	Open       *bool
	CreatedOn  *time.Time
	UpdatedOn  *time.Time

	// Unsatisfiable marks a filter built from a value no stored issue can hold.
	Unsatisfiable bool
}

// IssuePatch is a sparse set of field assignments. Nil fields are left untouched.
type IssuePatch struct {
	Title      *string
	Text       *string
	CreatedBy  *string
	AssignedTo *string
	StatusText *string
	Open       *bool
	UpdatedOn  time.Time
}

// field is one column/value pair shared by filters and patches.
type field struct {
	name  string
	value any
}

func (f IssueFilter) fields() []field {
	var out []field
	if f.ID != nil {
		out = append(out, field{models.FieldID, *f.ID})
	}
	out = appendString(out, models.FieldTitle, f.Title)
	out = appendString(out, models.FieldText, f.Text)
	out = appendString(out, models.FieldCreatedBy, f.CreatedBy)
	out = appendString(out, models.FieldAssignedTo, f.AssignedTo)
	out = appendString(out, models.FieldStatusText, f.StatusText)
	if f.Open != nil {
		out = append(out, field{models.FieldOpen, *f.Open})
	}
	if f.CreatedOn != nil {
		out = append(out, field{models.FieldCreatedOn, models.Timestamp(*f.CreatedOn)})
	}
	if f.UpdatedOn != nil {
		out = append(out, field{models.FieldUpdatedOn, models.Timestamp(*f.UpdatedOn)})
	}
	return out
}

func (p IssuePatch) fields() []field {
	var out []field
	out = appendString(out, models.FieldTitle, p.Title)
	out = appendString(out, models.FieldText, p.Text)
	out = appendString(out, models.FieldCreatedBy, p.CreatedBy)
	out = appendString(out, models.FieldAssignedTo, p.AssignedTo)
	out = appendString(out, models.FieldStatusText, p.StatusText)
	if p.Open != nil {
		out = append(out, field{models.FieldOpen, *p.Open})
	}
	if !p.UpdatedOn.IsZero() {
		out = append(out, field{models.FieldUpdatedOn, models.Timestamp(p.UpdatedOn)})
	}
	return out
}

func appendString(out []field, name string, v *string) []field {
	if v == nil {
		return out
	}
	return append(out, field{name, *v})
}

// Store is the document store the issue service persists through.
type Store interface {
	// InsertIssue persists a new issue, filling in ID and timestamps when unset.
	InsertIssue(ctx context.Context, issue *models.Issue) error
	// FindIssues returns the project's issues matching filter in insertion order.
	FindIssues(ctx context.Context, project string, filter IssueFilter) ([]*models.Issue, error)
	// UpdateIssue applies patch to the issue with id in project. ErrNotFound if absent.
	UpdateIssue(ctx context.Context, project string, id models.ID, patch IssuePatch) error
	// DeleteIssue removes the issue with id in project. ErrNotFound if absent.
	DeleteIssue(ctx context.Context, project string, id models.ID) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver        string
	SQLitePath    string
	PostgresDSN   string
	MongoURI      string
	MongoDatabase string
}

// Open connects to the backend named by cfg.Driver and migrates it.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		s, err = NewSQLiteStore(cfg.SQLitePath)
	case DriverPostgres:
		s, err = NewPostgresStore(ctx, cfg.PostgresDSN)
	case DriverMongo:
		s, err = NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.Driver, err)
	}
	return s, nil
}

// prepareInsert fills in the generated parts of a new issue.
func prepareInsert(issue *models.Issue) {
	if issue.ID.IsZero() {
		issue.ID = models.NewID()
	}
	if issue.CreatedOn.IsZero() {
		issue.CreatedOn = models.Now()
	}
	if issue.UpdatedOn.IsZero() {
		issue.UpdatedOn = issue.CreatedOn
	}
	issue.CreatedOn = models.Timestamp(issue.CreatedOn)
	issue.UpdatedOn = models.Timestamp(issue.UpdatedOn)
}
