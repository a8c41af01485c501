// Package authz contains the authorization policy for privileged account
// management. The policy is a pure function over the caller's role and
// identity; it performs no I/O and is evaluated before any store is touched.
package authz

import (
	"errors"

	"github.com/clinicore/clinicore/internal/role"
)

// ErrInsufficientPrivilege is returned when the caller's role does not permit
// creating or removing accounts of the requested kind.
var ErrInsufficientPrivilege = errors.New("insufficient privilege")

// ErrInvalidTargetRole is returned when a superadmin requests a target role
// outside the creatable set.
var ErrInvalidTargetRole = errors.New("invalid target role")

// ErrRoleNotFound is returned when the caller has no profile document and is
// not the bootstrap identity, so no role can be determined.
var ErrRoleNotFound = errors.New("caller role not found")

// Policy decides who may create whom. BootstrapEmail is the single designated
// identity that acts with superadmin privilege regardless of stored role; it
// is injected from configuration at process start.
type Policy struct {
	BootstrapEmail string
}

// New creates a Policy with the given bootstrap identity email.
func New(bootstrapEmail string) *Policy {
	return &Policy{BootstrapEmail: bootstrapEmail}
}

// Input carries everything the decision depends on. CallerRole is the role
// read from the profile store; RoleNone means no profile document exists.
type Input struct {
	CallerRole  role.Role
	CallerEmail string
	TargetRole  role.Role
}

// Decision is the outcome of Decide. On allow, Target carries the normalized
// target role; on deny, Reason carries one of the package sentinel errors.
type Decision struct {
	Allowed bool
	Target  role.Role
	Reason  error
}

func allow(target role.Role) Decision {
	return Decision{Allowed: true, Target: target}
}

func deny(reason error) Decision {
	return Decision{Reason: reason}
}

// Decide applies the policy rules in priority order:
//
//  1. The bootstrap identity may create admin or staff, regardless of stored
//     role (including having none).
//  2. A superadmin may create admin or staff; requesting superadmin is
//     rejected as an invalid target role.
//  3. An admin may create staff only.
//  4. Staff and unknown-role callers are denied outright.
//  5. A caller with no resolvable role (and not the bootstrap identity) is
//     denied with ErrRoleNotFound.
//
// An unspecified target role normalizes to staff before the rules apply.
func (p *Policy) Decide(in Input) Decision {
	target := in.TargetRole
	if target == role.RoleNone {
		target = role.RoleStaff
	}

	if p.BootstrapEmail != "" && in.CallerEmail == p.BootstrapEmail {
		if target == role.RoleAdmin || target == role.RoleStaff {
			return allow(target)
		}
		return deny(ErrInvalidTargetRole)
	}

	switch in.CallerRole {
	case role.RoleSuperadmin:
		if target == role.RoleAdmin || target == role.RoleStaff {
			return allow(target)
		}
		return deny(ErrInvalidTargetRole)
	case role.RoleAdmin:
		if target == role.RoleStaff {
			return allow(target)
		}
		return deny(ErrInsufficientPrivilege)
	case role.RoleStaff:
		return deny(ErrInsufficientPrivilege)
	case role.RoleNone:
		return deny(ErrRoleNotFound)
	}

	return deny(ErrInsufficientPrivilege)
}

// IsBootstrap reports whether email is the configured bootstrap identity.
// Always false when no bootstrap email is configured, so an empty email
// claim never matches an unset BOOTSTRAP_EMAIL.
func (p *Policy) IsBootstrap(email string) bool {
	return p.BootstrapEmail != "" && email == p.BootstrapEmail
}

// CanManage reports whether a caller with the given role and email may remove
// a principal holding targetRole. Removal authority mirrors creation
// authority: the caller must be allowed to create the target's role.
func (p *Policy) CanManage(callerRole role.Role, callerEmail string, targetRole role.Role) Decision {
	in := Input{CallerRole: callerRole, CallerEmail: callerEmail, TargetRole: targetRole}
	if targetRole == role.RoleNone {
		// Orphaned account with no profile: any caller holding provisioning
		// authority may remove it.
		in.TargetRole = role.RoleStaff
	}
	return p.Decide(in)
}
