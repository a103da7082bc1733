package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Denylist is the set of revoked token ids. Entries live as long as the token would.
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RedisConfig struct {
	Enable   bool   `yaml:"enable" envconfig:"REDIS_ENABLE"`
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

const defaultRevocationPrefix = "library:revoked"

type redisDenylist struct {
	client *redis.Client
	prefix string
}

func NewRedisDenylist(client *redis.Client, prefix string) Denylist {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	return &redisDenylist{client: client, prefix: prefix}
}

func (d *redisDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// already expired, nothing to deny
		return nil
	}
	key, err := d.key(jti)
	if err != nil {
		return err
	}
	if err := d.client.Set(ctx, key, 1, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set revoked jti")
	}
	return nil
}

func (d *redisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	key, err := d.key(jti)
	if err != nil {
		return false, err
	}
	n, err := d.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis exists revoked jti")
	}
	return n > 0, nil
}

func (d *redisDenylist) key(jti string) (string, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return "", errors.New("jti must not be empty")
	}
	return fmt.Sprintf("%s:%s", d.prefix, jti), nil
}

type nopDenylist struct{}

// NewNopDenylist never revokes; used when redis is disabled.
func NewNopDenylist() Denylist { return nopDenylist{} }

func (nopDenylist) Revoke(context.Context, string, time.Duration) error { return nil }
func (nopDenylist) IsRevoked(context.Context, string) (bool, error)   { return false, nil }
