package client

import (
	"context"
	"errors"
	"sync"
)

// ErrSubmitInFlight is returned when a submission starts while another is
// still running. The backend's two-step creation is not retry-safe, so the
// roster refuses concurrent submissions instead of racing them.
var ErrSubmitInFlight = errors.New("a submission is already in flight")

var roleRank = map[string]int{"staff": 1, "admin": 2, "superadmin": 3}

// Viewer describes the principal looking at the roster, used for the
// client-side visibility filter.
type Viewer struct {
	Role           string
	Email          string
	BootstrapEmail string
}

// canManage mirrors the server-side authority rule: a viewer may manage
// principals whose role they could create.
func (v Viewer) canManage(targetRole string) bool {
	if v.BootstrapEmail != "" && v.Email == v.BootstrapEmail {
		return roleRank[targetRole] < roleRank["superadmin"]
	}
	switch v.Role {
	case "superadmin":
		return roleRank[targetRole] < roleRank["superadmin"]
	case "admin":
		return targetRole == "staff"
	}
	return false
}

// visible applies the roster filter: unmanageable roles are hidden, and the
// bootstrap identity's row is hidden from everyone but itself.
func (v Viewer) visible(u User) bool {
	if v.BootstrapEmail != "" && u.Email == v.BootstrapEmail && v.Email != v.BootstrapEmail {
		return false
	}
	return v.canManage(u.Role)
}

// Roster keeps the in-memory list of managed principals, reconciled with the
// results of API calls. Safe for concurrent use.
type Roster struct {
	client *Client
	viewer Viewer

	mu       sync.Mutex
	users    []User
	inFlight bool
}

// NewRoster creates an empty roster for the given viewer.
func NewRoster(c *Client, viewer Viewer) *Roster {
	return &Roster{client: c, viewer: viewer}
}

// Load replaces the roster with the current server-side list. On failure the
// roster becomes empty and the error carries the reason to surface as a
// warning; the view stays usable either way.
func (r *Roster) Load(ctx context.Context) error {
	users, err := r.client.ListUsers(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.users = []User{}
		return err
	}

	filtered := make([]User, 0, len(users))
	for _, u := range users {
		if r.viewer.visible(u) {
			filtered = append(filtered, u)
		}
	}
	r.users = filtered
	return nil
}

// Users returns a copy of the current roster.
func (r *Roster) Users() []User {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]User, len(r.users))
	copy(out, r.users)
	return out
}

// Submit provisions a new principal and merges the result into the roster.
// While one submission runs, further submissions fail with ErrSubmitInFlight.
// On API failure the roster is untouched and the returned error's message is
// suitable for display; the caller keeps its form state for retry.
func (r *Roster) Submit(ctx context.Context, req CreateUserRequest, idempotencyKey string) (*User, error) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	r.inFlight = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
	}()

	created, err := r.client.CreateUser(ctx, req, idempotencyKey)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.viewer.visible(*created) {
		merged := false
		for i := range r.users {
			if r.users[i].UID == created.UID {
				r.users[i] = *created
				merged = true
				break
			}
		}
		if !merged {
			r.users = append(r.users, *created)
		}
	}

	return created, nil
}

// Remove deprovisions the principal and drops it from the roster on success.
func (r *Roster) Remove(ctx context.Context, uid string) error {
	if err := r.client.DeleteUser(ctx, uid); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if r.users[i].UID == uid {
			r.users = append(r.users[:i], r.users[i+1:]...)
			break
		}
	}
	return nil
}
