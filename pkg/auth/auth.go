package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const RoleAdmin = "admin"

// Identity is the authenticated caller as carried by a verified access token.
type Identity struct {
	AccountID int64
	Username  string
	Role      string
	Staff     bool
	TokenID   string
	ExpiresAt time.Time
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin || i.Staff
}

func (i Identity) Valid() bool {
	return i.AccountID > 0 && i.Username != ""
}

type ctxKey int

const identityKey ctxKey = iota + 1

var ErrNoIdentity = errors.New("no identity in context")

func SetAuthContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func GetIdentity(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

func IsAdmin(ctx context.Context) bool {
	id, err := GetIdentity(ctx)
	return err == nil && id.IsAdmin()
}
