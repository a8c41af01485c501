package profile

import (
	"time"

	"github.com/clinicore/clinicore/internal/role"
)

// Profile is the per-principal document in the profile store, keyed by the
// identity-provider UID. Contact fields are free-form and default to the
// empty string when not supplied. Store adapters map this to their own wire
// representation; see profileDoc in mongo_store.go.
type Profile struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone"`
	Birthdate string    `json:"birthdate"`
	Address   string    `json:"address"`
	Role      role.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}
