package issues

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// CreateInput carries the fields accepted when creating an issue.
type CreateInput struct {
	Title      string
	Text       string
	CreatedBy  string
	AssignedTo string
	StatusText string
}

// Validate reports ErrRequiredFields when title, text or author is empty.
func (in CreateInput) Validate() error {
	if in.Title == "" || in.Text == "" || in.CreatedBy == "" {
		return ErrRequiredFields
	}
	return nil
}

// CreateInputFromFields reads a create request body.
func CreateInputFromFields(fields map[string]any) CreateInput {
	var in CreateInput
	in.Title, _ = stringField(fields, models.FieldTitle)
	in.Text, _ = stringField(fields, models.FieldText)
	in.CreatedBy, _ = stringField(fields, models.FieldCreatedBy)
	in.AssignedTo, _ = stringField(fields, models.FieldAssignedTo)
	in.StatusText, _ = stringField(fields, models.FieldStatusText)
	return in
}

// IDFromFields returns the _id value of a request body, or "" when absent.
func IDFromFields(fields map[string]any) string {
	id, _ := stringField(fields, models.FieldID)
	return id
}

// Patch is a sparse update: nil fields were not sent and are left untouched.
type Patch struct {
	Title      *string
	Text       *string
	CreatedBy  *string
	AssignedTo *string
	StatusText *string
	Open       *bool

	// invalid holds fields that were sent with a value that cannot be stored.
	invalid []string
}

// Empty reports whether no mutable field was sent.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Text == nil && p.CreatedBy == nil &&
		p.AssignedTo == nil && p.StatusText == nil && p.Open == nil &&
		len(p.invalid) == 0
}

func (p Patch) err() error {
	if len(p.invalid) > 0 {
		return fmt.Errorf("invalid value for %v", p.invalid)
	}
	return nil
}

func (p Patch) toStore(now time.Time) store.IssuePatch {
	return store.IssuePatch{
		Title:      p.Title,
		Text:       p.Text,
		CreatedBy:  p.CreatedBy,
		AssignedTo: p.AssignedTo,
		StatusText: p.StatusText,
		Open:       p.Open,
		UpdatedOn:  now,
	}
}

// PatchFromFields builds a patch from a request body. When dropEmpty is set,
// empty strings count as not sent, which is how HTML forms encode untouched
// inputs. Unknown keys and _id are ignored.
func PatchFromFields(fields map[string]any, dropEmpty bool) Patch {
	var p Patch
	text := func(name string) *string {
		v, ok := stringField(fields, name)
		if !ok || (dropEmpty && v == "") {
			return nil
		}
		return &v
	}
	p.Title = text(models.FieldTitle)
	p.Text = text(models.FieldText)
	p.CreatedBy = text(models.FieldCreatedBy)
	p.AssignedTo = text(models.FieldAssignedTo)
	p.StatusText = text(models.FieldStatusText)

	switch v := fields[models.FieldOpen].(type) {
	case nil:
	case bool:
		p.Open = &v
	case string:
		if v == "" {
			break
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.invalid = append(p.invalid, models.FieldOpen)
			break
		}
		p.Open = &b
	default:
		p.invalid = append(p.invalid, models.FieldOpen)
	}
	return p
}

// stringField reads a scalar body value as a string.
func stringField(fields map[string]any, name string) (string, bool) {
	switch v := fields[name].(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool, float64, int, int64:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}
