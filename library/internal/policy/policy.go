// Package policy decides whether a caller may perform an operation. Decisions
// are pure: they depend only on the caller, the kind of operation and, for
// owned resources, the owning account.
package policy

import (
	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/pkg/auth"
)

type Kind uint8

const (
	PublicRead Kind = iota + 1
	Authenticated
	OwnerOrAdmin
	AdminOnly
)

func (k Kind) String() string {
	switch k {
	case PublicRead:
		return "public-read"
	case Authenticated:
		return "authenticated"
	case OwnerOrAdmin:
		return "owner-or-admin"
	case AdminOnly:
		return "admin-only"
	default:
		return "unknown"
	}
}

type Decision uint8

const (
	Allow Decision = iota + 1
	DenyUnauthenticated
	DenyForbidden
)

// Decide evaluates kind for who. who is nil for anonymous callers; ownerID is
// consulted for OwnerOrAdmin only.
func Decide(who *auth.Identity, kind Kind, ownerID int64) Decision {
	if kind == PublicRead {
		return Allow
	}
	if who == nil || !who.Valid() {
		return DenyUnauthenticated
	}
	switch kind {
	case Authenticated:
		return Allow
	case OwnerOrAdmin:
		if who.IsAdmin() || who.AccountID == ownerID {
			return Allow
		}
	case AdminOnly:
		if who.IsAdmin() {
			return Allow
		}
	}
	return DenyForbidden
}

// Check is Decide mapped onto errs.ErrUnauthorized and errs.ErrForbidden.
func Check(who *auth.Identity, kind Kind, ownerID int64) error {
	switch Decide(who, kind, ownerID) {
	case Allow:
		return nil
	case DenyUnauthenticated:
		return errs.ErrUnauthorized
	default:
		return errs.ErrForbidden
	}
}
