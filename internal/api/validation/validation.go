// Package validation checks request payloads before they reach a handler's
// business logic. Validators return a list of per-field errors suitable for
// the response envelope's details.
package validation

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
