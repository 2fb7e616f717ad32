package issues

import (
	"net/url"
	"strconv"
	"time"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// NewFilter builds a typed filter from raw field/value pairs. Only issue
// fields are honored; unknown keys are ignored. A value that cannot be
// converted to the field's type yields a filter that matches nothing.
func NewFilter(values map[string]string) store.IssueFilter {
	var f store.IssueFilter
	for key, raw := range values {
		v := raw
		switch key {
		case models.FieldID:
			id, err := models.ParseID(v)
			if err != nil {
				f.Unsatisfiable = true
				continue
			}
			f.ID = &id
		case models.FieldTitle:
			f.Title = &v
		case models.FieldText:
			f.Text = &v
		case models.FieldCreatedBy:
			f.CreatedBy = &v
		case models.FieldAssignedTo:
			f.AssignedTo = &v
		case models.FieldStatusText:
			f.StatusText = &v
		case models.FieldOpen:
			b, err := strconv.ParseBool(v)
			if err != nil {
				f.Unsatisfiable = true
				continue
			}
			f.Open = &b
		case models.FieldCreatedOn, models.FieldUpdatedOn:
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				f.Unsatisfiable = true
				continue
			}
			ts = models.Timestamp(ts)
			if key == models.FieldCreatedOn {
				f.CreatedOn = &ts
			} else {
				f.UpdatedOn = &ts
			}
		}
	}
	return f
}

// FilterFromQuery builds a filter from a URL query, using the first value of
// each key.
func FilterFromQuery(q url.Values) store.IssueFilter {
	values := make(map[string]string, len(q))
	for key := range q {
		values[key] = q.Get(key)
	}
	return NewFilter(values)
}
