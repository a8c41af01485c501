// Package provision implements the privileged account-provisioning workflow:
// authorization, the two-step creation across the identity provider and the
// profile store, and the inverse deprovisioning. The two stores have no joint
// transaction; every precondition and policy check runs before the first
// mutation so denials never leave side effects.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clinicore/clinicore/internal/authz"
	"github.com/clinicore/clinicore/internal/idempotency"
	"github.com/clinicore/clinicore/internal/identity"
	"github.com/clinicore/clinicore/internal/profile"
	"github.com/clinicore/clinicore/internal/role"
)

// ErrUnauthenticated is returned when no verified caller identity is present.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrInvalidArgument is returned when a required request field is missing or
// malformed.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrNotFound is returned when the deprovisioning target exists in neither
// store.
var ErrNotFound = errors.New("principal not found")

// Caller is the verified identity of the principal invoking an operation,
// established by the transport layer from a bearer credential.
type Caller struct {
	UID   string
	Email string
}

// Request is the account-provisioning payload.
type Request struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Birthdate string `json:"birthdate"`
	Address   string `json:"address"`
	Role      string `json:"role"`
}

// Created is the result of a successful provisioning: the generated identity
// plus the stored profile fields.
type Created struct {
	Profile  profile.Profile
	Replayed bool // true when served from the idempotency recorder
}

// Service runs the provisioning and deprovisioning workflows.
type Service struct {
	provider identity.Provider
	store    profile.Store
	policy   *authz.Policy
	recorder idempotency.Recorder
	now      func() time.Time
}

// NewService creates a Service. recorder may be nil, in which case requests
// carrying an idempotency key get no replay protection.
func NewService(provider identity.Provider, store profile.Store, policy *authz.Policy, recorder idempotency.Recorder) *Service {
	return &Service{
		provider: provider,
		store:    store,
		policy:   policy,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// lookupRole reads the caller's role from the profile store. A missing
// profile document is the valid "no role" outcome, not an error; only
// connectivity failures propagate.
func (s *Service) lookupRole(ctx context.Context, uid string) (role.Role, error) {
	p, err := s.store.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return role.RoleNone, nil
		}
		return role.RoleNone, fmt.Errorf("looking up caller role: %w", err)
	}
	return p.Role, nil
}

// Create provisions a new principal: identity-provider account first, then
// the profile document. There is no rollback; a failure after the first
// mutation leaves an orphaned account for the reconciler to find.
//
// idempotencyKey may be empty. When set and a result is already recorded for
// it, that result is replayed without re-running the mutation.
func (s *Service) Create(ctx context.Context, caller *Caller, req Request, idempotencyKey string) (*Created, error) {
	if caller == nil || caller.UID == "" {
		return nil, ErrUnauthenticated
	}

	if strings.TrimSpace(req.Email) == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidArgument)
	}

	// Absent role defaults to staff; an unknown role string is a caller bug.
	targetRole, err := role.Parse(strings.TrimSpace(req.Role))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	callerRole := role.RoleNone
	if !s.policy.IsBootstrap(caller.Email) {
		callerRole, err = s.lookupRole(ctx, caller.UID)
		if err != nil {
			return nil, err
		}
	}

	decision := s.policy.Decide(authz.Input{
		CallerRole:  callerRole,
		CallerEmail: caller.Email,
		TargetRole:  targetRole,
	})
	if !decision.Allowed {
		return nil, decision.Reason
	}

	// Replay only after the caller is authorized, and only the caller's own
	// recorded results: keys are scoped per caller UID so one principal
	// cannot surface another's outcome.
	recorderKey := caller.UID + ":" + idempotencyKey
	if s.recorder != nil && idempotencyKey != "" {
		if recorded, err := s.recorder.Get(ctx, recorderKey); err == nil {
			replayed, err := s.replay(ctx, recorded)
			if err != nil {
				return nil, err
			}
			return replayed, nil
		} else if !errors.Is(err, idempotency.ErrNotRecorded) {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
	}

	account, err := s.provider.CreateAccount(ctx, identity.NewAccount{
		Email:       strings.TrimSpace(req.Email),
		Password:    req.Password,
		DisplayName: displayName(req.FirstName, req.LastName),
	})
	if err != nil {
		return nil, fmt.Errorf("creating identity-provider account: %w", err)
	}

	p := profile.Profile{
		UID:       account.UID,
		Email:     account.Email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
		Birthdate: strings.TrimSpace(req.Birthdate),
		Address:   strings.TrimSpace(req.Address),
		Role:      decision.Target,
		CreatedAt: s.now(),
	}

	if err := s.store.Put(ctx, &p); err != nil {
		// The account exists but the profile write failed. State is now
		// inconsistent until the reconciler catches it.
		slog.Error("profile write failed after account creation; stores are inconsistent",
			"uid", account.UID,
			"email", account.Email,
			"error", err,
		)
		return nil, fmt.Errorf("writing profile for account %s: %w", account.UID, err)
	}

	if s.recorder != nil && idempotencyKey != "" {
		record := idempotency.Result{UID: p.UID, Email: p.Email, Role: p.Role.String()}
		if err := s.recorder.Put(ctx, recorderKey, record); err != nil {
			slog.Warn("failed to record idempotency key", "key", idempotencyKey, "error", err)
		}
	}

	return &Created{Profile: p}, nil
}

// replay reconstructs a Created from a recorded result, re-reading the
// profile so the response carries current fields.
func (s *Service) replay(ctx context.Context, recorded *idempotency.Result) (*Created, error) {
	p, err := s.store.Get(ctx, recorded.UID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			// Recorded but since deprovisioned; replay the bare identity.
			r, _ := role.Parse(recorded.Role)
			return &Created{
				Profile:  profile.Profile{UID: recorded.UID, Email: recorded.Email, Role: r},
				Replayed: true,
			}, nil
		}
		return nil, fmt.Errorf("replaying recorded result: %w", err)
	}
	return &Created{Profile: *p, Replayed: true}, nil
}

// Delete deprovisions the principal identified by uid. The profile document
// goes first so a crash mid-operation fails toward "no access" rather than a
// dangling privileged identity; the identity-provider record follows.
func (s *Service) Delete(ctx context.Context, caller *Caller, uid string) error {
	if caller == nil || caller.UID == "" {
		return ErrUnauthenticated
	}
	if uid == "" {
		return fmt.Errorf("%w: uid is required", ErrInvalidArgument)
	}

	callerRole := role.RoleNone
	if !s.policy.IsBootstrap(caller.Email) {
		var err error
		callerRole, err = s.lookupRole(ctx, caller.UID)
		if err != nil {
			return err
		}
	}

	targetRole := role.RoleNone
	targetProfile, err := s.store.Get(ctx, uid)
	switch {
	case err == nil:
		targetRole = targetProfile.Role
	case errors.Is(err, profile.ErrProfileNotFound):
		// Possibly an orphaned account; existence is checked below.
	default:
		return fmt.Errorf("looking up target role: %w", err)
	}

	decision := s.policy.CanManage(callerRole, caller.Email, targetRole)
	if !decision.Allowed {
		return decision.Reason
	}

	if targetProfile == nil {
		if _, err := s.provider.GetAccount(ctx, uid); err != nil {
			if errors.Is(err, identity.ErrAccountNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("checking identity-provider account: %w", err)
		}
	}

	if targetProfile != nil {
		if err := s.store.Delete(ctx, uid); err != nil && !errors.Is(err, profile.ErrProfileNotFound) {
			return fmt.Errorf("deleting profile: %w", err)
		}
	}

	if err := s.provider.DeleteAccount(ctx, uid); err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			// Orphaned profile with no account: the profile removal above
			// already restored consistency.
			return nil
		}
		slog.Error("account deletion failed after profile removal; stores are inconsistent",
			"uid", uid,
			"error", err,
		)
		return fmt.Errorf("deleting identity-provider account %s: %w", uid, err)
	}

	return nil
}

// List returns the roster visible to the caller: principals whose role the
// caller has authority to manage. The bootstrap identity's row is visible
// only to the bootstrap identity itself.
func (s *Service) List(ctx context.Context, caller *Caller) ([]profile.Profile, error) {
	if caller == nil || caller.UID == "" {
		return nil, ErrUnauthenticated
	}

	callerRole := role.RoleNone
	if !s.policy.IsBootstrap(caller.Email) {
		var err error
		callerRole, err = s.lookupRole(ctx, caller.UID)
		if err != nil {
			return nil, err
		}
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}

	visible := []profile.Profile{}
	for _, p := range all {
		if s.policy.IsBootstrap(p.Email) && !s.policy.IsBootstrap(caller.Email) {
			continue
		}
		if !s.policy.CanManage(callerRole, caller.Email, p.Role).Allowed {
			continue
		}
		visible = append(visible, p)
	}

	return visible, nil
}

func displayName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
