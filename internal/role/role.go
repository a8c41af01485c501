// Package role defines the closed set of authorization roles a principal
// may hold. Roles live in the profile store, never in the identity provider;
// a principal without a profile document has RoleNone.
package role

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Role is a principal's authorization role.
type Role int

const (
	// RoleNone means no profile document exists for the principal.
	RoleNone Role = iota
	RoleStaff
	RoleAdmin
	RoleSuperadmin
)

// ErrUnknownRole is returned when parsing a role string outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// Parse converts a stored role string into a Role. The empty string maps to
// RoleNone; anything outside the closed set is ErrUnknownRole.
func Parse(s string) (Role, error) {
	switch s {
	case "":
		return RoleNone, nil
	case "staff":
		return RoleStaff, nil
	case "admin":
		return RoleAdmin, nil
	case "superadmin":
		return RoleSuperadmin, nil
	}
	return RoleNone, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// String returns the stored form of the role. RoleNone is the empty string.
func (r Role) String() string {
	switch r {
	case RoleStaff:
		return "staff"
	case RoleAdmin:
		return "admin"
	case RoleSuperadmin:
		return "superadmin"
	}
	return ""
}

// Outranks reports whether r sits strictly above other in the hierarchy.
func (r Role) Outranks(other Role) bool {
	return r > other
}

// MarshalJSON encodes the role as its stored string form.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a stored role string, rejecting unknown values.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
