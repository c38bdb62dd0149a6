package session

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mothercare/core"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		want   Role
		wantOk bool
	}{
		{name: "admin", user: `{"id":1,"role":{"name":"Admin","type":"admin"}}`, want: RoleAdmin, wantOk: true},
		{name: "educator", user: `{"id":1,"role":{"name":"Educator","type":"educator"}}`, want: RoleEducator, wantOk: true},
		{name: "parent", user: `{"id":1,"role":{"name":"Parent"}}`, want: RoleParent, wantOk: true},
		{name: "case and spaces", user: `{"id":1,"role":{"name":"  eDuCaToR "}}`, want: RoleEducator, wantOk: true},
		{name: "type only is not canonical", user: `{"id":1,"role":{"type":"admin"}}`},
		{name: "unknown role", user: `{"id":1,"role":{"name":"Authenticated","type":"authenticated"}}`},
		{name: "superadmin is not admin", user: `{"id":1,"role":{"name":"SuperAdmin"}}`},
		{name: "role is a string", user: `{"id":1,"role":"admin"}`},
		{name: "role null", user: `{"id":1,"role":null}`},
		{name: "no role", user: `{"id":1}`},
		{name: "not json", user: `{"id":`},
		{name: "empty", user: ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(UserRecord(tt.user))
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range Roles {
		got, ok := ParseRole(r.Label())
		assert.True(t, ok, r)
		assert.Equal(t, r, got)
	}
	_, ok := ParseRole("")
	assert.False(t, ok)
}

func newValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate, translator
}

func TestParseProfile(t *testing.T) {
	validate, translator := newValidator()

	tests := []struct {
		name       string
		user       string
		wantFields map[string]string
		wantErr    bool
	}{
		{
			name: "valid educator",
			user: `{"id":12,"documentId":"u12","username":"dara","email":"dara@mothercare.org","role":{"id":3,"name":"Educator","type":"educator"},"branch":{"documentId":"b1","name":"Phnom Penh"}}`,
		},
		{
			name:       "missing role",
			user:       `{"id":12,"username":"dara"}`,
			wantFields: map[string]string{"role": "this field is required"},
		},
		{
			name:       "unknown role",
			user:       `{"id":12,"role":{"name":"Authenticated"}}`,
			wantFields: map[string]string{"name": "name must be one of Admin, Educator or Parent"},
		},
		{
			name:       "missing id",
			user:       `{"role":{"name":"Admin"}}`,
			wantFields: map[string]string{"id": "this field is required"},
		},
		{name: "not json", user: `nope`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseProfile(UserRecord(tt.user), validate)
			switch {
			case tt.wantErr:
				assert.Error(t, err)
			case tt.wantFields != nil:
				vErr, ok := core.TranslateValidationErrors(err, translator).(*core.ValidationError)
				require.True(t, ok, "got %v", err)
				assert.Equal(t, tt.wantFields, vErr.FieldMap())
			default:
				require.NoError(t, err)
				assert.Equal(t, 12, p.UserID())
				assert.Equal(t, "dara", p.Username)
				assert.Equal(t, "Phnom Penh", p.Branch.Name)
				assert.Equal(t, "12", p.Person().ID)
			}
		})
	}
}
