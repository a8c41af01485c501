package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinicore/clinicore/internal/api/validation"
)

func fieldNames(errs []validation.FieldError) []string {
	names := make([]string, 0, len(errs))
	for _, e := range errs {
		names = append(names, e.Field)
	}
	return names
}

func TestValidateCreateUserRequest_Valid(t *testing.T) {
	errs := validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Email:    "nurse@clinic.test",
		Password: "secret1",
		Role:     "staff",
	})
	assert.Empty(t, errs)
}

func TestValidateCreateUserRequest_AllMissing(t *testing.T) {
	errs := validation.ValidateCreateUserRequest(validation.CreateUserRequest{})
	assert.ElementsMatch(t, []string{"email", "password", "role"}, fieldNames(errs))
}

func TestValidateCreateUserRequest_BadEmail(t *testing.T) {
	cases := []string{"no-at-sign", "two words@x.com", strings.Repeat("a", 250) + "@toolong.example"}
	for _, email := range cases {
		errs := validation.ValidateCreateUserRequest(validation.CreateUserRequest{
			Email:    email,
			Password: "secret1",
			Role:     "staff",
		})
		assert.Equal(t, []string{"email"}, fieldNames(errs), "email %q", email)
	}
}

func TestValidateCreateUserRequest_ShortPassword(t *testing.T) {
	errs := validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Email:    "nurse@clinic.test",
		Password: "12345",
		Role:     "staff",
	})
	assert.Equal(t, []string{"password"}, fieldNames(errs))
}

func TestValidateCreateUserRequest_UnknownRole(t *testing.T) {
	errs := validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Email:    "nurse@clinic.test",
		Password: "secret1",
		Role:     "owner",
	})
	assert.Equal(t, []string{"role"}, fieldNames(errs))
}
