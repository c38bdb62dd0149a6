package session

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/mothercare/core"
)

var ErrInvalidUserRecord = errors.New("user record is not a JSON object")

// UserRecord is the profile returned by the CMS, kept byte-for-byte as received.
// It is never mutated in place: a new login replaces it wholesale.
type UserRecord []byte

// NewUserRecord copies raw and checks that it holds a JSON object.
func NewUserRecord(raw []byte) (UserRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, ErrInvalidUserRecord
	}
	rec := make(UserRecord, len(raw))
	copy(rec, raw)
	return rec, nil
}

func (u UserRecord) IsZero() bool { return len(u) == 0 }

func (u UserRecord) String() string { return string(u) }

// MarshalJSON keeps the record verbatim when it is embedded in other JSON documents.
func (u UserRecord) MarshalJSON() ([]byte, error) {
	if u.IsZero() {
		return []byte("null"), nil
	}
	return []byte(u), nil
}

// Profile decodes the typed fields of the record.
func (u UserRecord) Profile() (Profile, error) {
	var p Profile
	if u.IsZero() {
		return p, ErrInvalidUserRecord
	}
	if err := json.Unmarshal(u, &p); err != nil {
		return p, errors.Wrap(err, "decoding user record")
	}
	return p, nil
}

type (
	// Profile holds the fields of a UserRecord the dashboard relies on.
	Profile struct {
		ID         json.Number     `json:"id" validate:"required"`
		DocumentID string          `json:"documentId"`
		Username   string          `json:"username"`
		Email      string          `json:"email"`
		Role       *RoleDescriptor `json:"role" validate:"required"`
		Branch     *Branch         `json:"branch"`
	}

	// RoleDescriptor is the users-permissions role populated on the profile.
	// Name is the canonical field; Type is kept for display only.
	RoleDescriptor struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name" validate:"required,rolename"`
		Type string      `json:"type"`
	}

	Branch struct {
		DocumentID string `json:"documentId"`
		Name       string `json:"name"`
	}
)

// UserID returns the numeric CMS id of the profile, or 0.
func (p Profile) UserID() int {
	id, err := strconv.Atoi(p.ID.String())
	if err != nil {
		return 0
	}
	return id
}

// Person returns the identity reported alongside logged errors.
func (p Profile) Person() core.Person {
	return core.Person{ID: p.ID.String(), Username: p.Username, Email: p.Email}
}

// ParseProfile decodes a user record and validates it against the profile schema.
// Records whose role is absent or outside the closed role set are rejected.
func ParseProfile(u UserRecord, validate *validator.Validate) (Profile, error) {
	p, err := u.Profile()
	if err != nil {
		return p, err
	}
	if err = validate.Struct(p); err != nil {
		return p, err
	}
	return p, nil
}

// Session is the pairing of a bearer token and the user profile it belongs to.
// User is only meaningful when Token is not empty.
type Session struct {
	Token string
	User  UserRecord
}

func (s Session) IsEmpty() bool {
	return s.Token == ""
}
