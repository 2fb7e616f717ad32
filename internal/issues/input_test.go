package issues

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInputFromFields(t *testing.T) {
	in := CreateInputFromFields(map[string]any{
		"issue_title": "Issue",
		"issue_text":  "Functional Test",
		"created_by":  "fCC",
		"assigned_to": nil,
		"status_text": 42.0,
		"project":     "ignored",
	})
	assert.Equal(t, CreateInput{Title: "Issue", Text: "Functional Test", CreatedBy: "fCC", StatusText: "42"}, in)
}

func TestCreateInputFromFields_JSONNumber(t *testing.T) {
	in := CreateInputFromFields(map[string]any{
		"issue_title": json.Number("123456789"),
		"issue_text":  json.Number("0.5"),
		"created_by":  "fCC",
	})
	assert.Equal(t, "123456789", in.Title)
	assert.Equal(t, "0.5", in.Text)
	assert.NoError(t, in.Validate())
}

func TestCreateInput_Validate(t *testing.T) {
	assert.NoError(t, CreateInput{Title: "t", Text: "x", CreatedBy: "me"}.Validate())
	assert.ErrorIs(t, CreateInput{Title: "t", Text: "x"}.Validate(), ErrRequiredFields)
	assert.ErrorIs(t, CreateInput{}.Validate(), ErrRequiredFields)
}

func TestPatchFromFields(t *testing.T) {
	t.Run("presence based", func(t *testing.T) {
		p := PatchFromFields(map[string]any{"_id": "x", "assigned_to": "", "open": false}, false)
		require.NotNil(t, p.AssignedTo)
		assert.Equal(t, "", *p.AssignedTo)
		require.NotNil(t, p.Open)
		assert.False(t, *p.Open)
		assert.Nil(t, p.Title)
		assert.False(t, p.Empty())
	})

	t.Run("form drops empty values", func(t *testing.T) {
		p := PatchFromFields(map[string]any{"_id": "x", "issue_title": "", "open": ""}, true)
		assert.True(t, p.Empty())
	})

	t.Run("open from form string", func(t *testing.T) {
		p := PatchFromFields(map[string]any{"open": "false"}, true)
		require.NotNil(t, p.Open)
		assert.False(t, *p.Open)
		assert.NoError(t, p.err())
	})

	t.Run("invalid open is not empty", func(t *testing.T) {
		p := PatchFromFields(map[string]any{"open": "nope"}, true)
		assert.False(t, p.Empty())
		assert.Error(t, p.err())
	})

	t.Run("only id is empty", func(t *testing.T) {
		assert.True(t, PatchFromFields(map[string]any{"_id": "abc"}, false).Empty())
	})
}

func TestNewFilter(t *testing.T) {
	f := NewFilter(map[string]string{
		"issue_title": "Issue",
		"open":        "true",
		"created_on":  "2022-08-16T10:19:15.642Z",
		"unknown":     "ignored",
	})
	require.NotNil(t, f.Title)
	assert.Equal(t, "Issue", *f.Title)
	require.NotNil(t, f.Open)
	assert.True(t, *f.Open)
	require.NotNil(t, f.CreatedOn)
	assert.True(t, f.CreatedOn.Equal(time.Date(2022, 8, 16, 10, 19, 15, 642_000_000, time.UTC)))
	assert.False(t, f.Unsatisfiable)
}

func TestNewFilter_Unsatisfiable(t *testing.T) {
	for _, values := range []map[string]string{
		{"open": "sometimes"},
		{"_id": "123"},
		{"updated_on": "yesterday"},
	} {
		assert.True(t, NewFilter(values).Unsatisfiable, "%v", values)
	}
}

func TestFilterFromQuery(t *testing.T) {
	q, err := url.ParseQuery("assigned_to=Dom&assigned_to=Ann&open=false")
	require.NoError(t, err)

	f := FilterFromQuery(q)
	require.NotNil(t, f.AssignedTo)
	assert.Equal(t, "Dom", *f.AssignedTo)
	require.NotNil(t, f.Open)
	assert.False(t, *f.Open)
}

func TestReason(t *testing.T) {
	err := &failure{reason: ErrUpdateFailed, cause: assert.AnError}
	assert.Equal(t, "could not update", Reason(err))
	assert.Equal(t, "missing _id", Reason(ErrMissingID))
}
