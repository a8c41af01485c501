package validation

import (
	"strings"

	"github.com/clinicore/clinicore/internal/role"
)

// MinPasswordLength matches the identity provider's minimum.
const MinPasswordLength = 6

// CreateUserRequest mirrors the fields needed for create user validation.
type CreateUserRequest struct {
	Email    string
	Password string
	Role     string
}

// ValidateCreateUserRequest validates the required fields of a provisioning
// request. Optional contact fields are free-form and not validated.
func ValidateCreateUserRequest(req CreateUserRequest) []FieldError {
	var errs []FieldError

	email := strings.TrimSpace(req.Email)
	if email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	} else if !strings.Contains(email, "@") || strings.ContainsAny(email, " \t") {
		errs = append(errs, FieldError{Field: "email", Message: "email must be a valid address"})
	} else if len(email) > 255 {
		errs = append(errs, FieldError{Field: "email", Message: "email must be at most 255 characters"})
	}

	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	} else if len(req.Password) < MinPasswordLength {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 6 characters"})
	}

	if strings.TrimSpace(req.Role) == "" {
		errs = append(errs, FieldError{Field: "role", Message: "role is required"})
	} else if r, err := role.Parse(strings.TrimSpace(req.Role)); err != nil || r == role.RoleNone {
		errs = append(errs, FieldError{Field: "role", Message: "role must be one of staff, admin, superadmin"})
	}

	return errs
}
