package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Issue field names as they appear on the wire and in the stores.
const (
	FieldID         = "_id"
	FieldTitle      = "issue_title"
	FieldText       = "issue_text"
	FieldCreatedBy  = "created_by"
	FieldAssignedTo = "assigned_to"
	FieldStatusText = "status_text"
	FieldOpen       = "open"
	FieldCreatedOn  = "created_on"
	FieldUpdatedOn  = "updated_on"
)

// TimeLayout is the fixed-width millisecond UTC layout used for issue timestamps.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInvalidID is returned when a string is not a well-formed issue identifier.
var ErrInvalidID = errors.New("invalid issue id")

// ID identifies an issue. Every backend uses the 12-byte ObjectID shape so
// identifiers look the same regardless of where they were generated.
type ID = primitive.ObjectID

// NewID generates a new issue identifier.
func NewID() ID {
	return primitive.NewObjectID()
}

// ParseID parses the 24 character hex form of an issue identifier.
func ParseID(s string) (ID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// Now returns the current time truncated to the precision issues are stored with.
func Now() time.Time {
	return Timestamp(time.Now())
}

// Timestamp normalizes t to UTC millisecond precision.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return Timestamp(t).Format(TimeLayout)
}

// Issue is a single tracked record belonging to exactly one project.
type Issue struct {
	ID         ID        `bson:"_id"`
	Project    string    `bson:"project"`
	Title      string    `bson:"issue_title"`
	Text       string    `bson:"issue_text"`
	CreatedBy  string    `bson:"created_by"`
	AssignedTo string    `bson:"assigned_to"`
	StatusText string    `bson:"status_text"`
	Open       bool      `bson:"open"`
	CreatedOn  time.Time `bson:"created_on"`
	UpdatedOn  time.Time `bson:"updated_on"`
}

// issueJSON is the wire shape. The project is carried by the URL, not the body.
type issueJSON struct {
	ID         string `json:"_id"`
	Title      string `json:"issue_title"`
	Text       string `json:"issue_text"`
	CreatedOn  string `json:"created_on"`
	UpdatedOn  string `json:"updated_on"`
	CreatedBy  string `json:"created_by"`
	AssignedTo string `json:"assigned_to"`
	Open       bool   `json:"open"`
	StatusText string `json:"status_text"`
}

func (i Issue) MarshalJSON() ([]byte, error) {
	return json.Marshal(issueJSON{
		ID:         i.ID.Hex(),
		Title:      i.Title,
		Text:       i.Text,
		CreatedOn:  FormatTime(i.CreatedOn),
		UpdatedOn:  FormatTime(i.UpdatedOn),
		CreatedBy:  i.CreatedBy,
		AssignedTo: i.AssignedTo,
		Open:       i.Open,
		StatusText: i.StatusText,
	})
}

func (i *Issue) UnmarshalJSON(data []byte) error {
	var raw issueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := ParseID(raw.ID)
	if err != nil {
		return err
	}
	createdOn, err := time.Parse(time.RFC3339, raw.CreatedOn)
	if err != nil {
		return fmt.Errorf("parse created_on: %w", err)
	}
	updatedOn, err := time.Parse(time.RFC3339, raw.UpdatedOn)
	if err != nil {
		return fmt.Errorf("parse updated_on: %w", err)
	}
	*i = Issue{
		ID:         id,
		Title:      raw.Title,
		Text:       raw.Text,
		CreatedBy:  raw.CreatedBy,
		AssignedTo: raw.AssignedTo,
		StatusText: raw.StatusText,
		Open:       raw.Open,
		CreatedOn:  createdOn.UTC(),
		UpdatedOn:  updatedOn.UTC(),
	}
	return nil
}
