package session

import (
	"encoding/json"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mothercare/core"
)

// Role is the access tier of a signed-in user.
type Role string

// Roles
const (
	RoleAdmin    Role = "admin"
	RoleEducator Role = "educator"
	RoleParent   Role = "parent"
)

var (
	Roles = []Role{RoleAdmin, RoleEducator, RoleParent}

	roleNameTag  = "rolename"
	roleNameText = "{0} must be one of Admin, Educator or Parent"
)

func (r Role) String() string { return string(r) }

// Label is the display name of the role, as the CMS names it.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleEducator:
		return "Educator"
	case RoleParent:
		return "Parent"
	}
	return ""
}

// ParseRole matches name case-insensitively against the closed role set.
func ParseRole(name string) (Role, bool) {
	switch Role(core.CleanString(name, true /* lower */)) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleEducator:
		return RoleEducator, true
	case RoleParent:
		return RoleParent, true
	}
	return "", false
}

// Resolve derives the role from the stored user record, reading `role.name`.
// It never defaults: an absent or unrecognized role yields ok == false.
func Resolve(u UserRecord) (Role, bool) {
	if u.IsZero() {
		return "", false
	}
	var rec struct {
		Role *struct {
			Name string `json:"name"`
		} `json:"role"`
	}
	if err := json.Unmarshal(u, &rec); err != nil || rec.Role == nil {
		return "", false
	}
	return ParseRole(rec.Role.Name)
}

// InitValidators registers the role validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleNameTag, roleNameValidation)
	core.RegisterCustomTranslation(validate, translator, roleNameTag, roleNameText)
}

func roleNameValidation(fl validator.FieldLevel) bool {
	_, ok := ParseRole(fl.Field().String())
	return ok
}
