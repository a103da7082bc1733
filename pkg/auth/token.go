package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrInvalidToken = errors.New("token is invalid or expired")
	ErrTokenType    = errors.New("unexpected token type")
)

type Config struct {
	Secret     string        `yaml:"secret" envconfig:"JWT_SECRET" required:"true"`
	AccessTTL  time.Duration `yaml:"accessTTL" envconfig:"JWT_ACCESS_TTL" default:"60m"`
	RefreshTTL time.Duration `yaml:"refreshTTL" envconfig:"JWT_REFRESH_TTL" default:"24h"`
}

type Profile struct {
	AccountID int64  `json:"uid"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Staff     bool   `json:"staff,omitempty"`
}

type Claims struct {
	Profile   Profile   `json:"profile"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	id := Identity{
		AccountID: c.Profile.AccountID,
		Username:  c.Profile.Username,
		Role:      c.Profile.Role,
		Staff:     c.Profile.Staff,
		TokenID:   c.ID,
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type TokenManager struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(cfg Config) *TokenManager {
	return &TokenManager{
		key:        []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func (m *TokenManager) Issue(p Profile) (TokenPair, error) {
	refresh, err := m.sign(p, RefreshToken, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	access, err := m.sign(p, AccessToken, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// IssueAccess mints a fresh access token for an already verified refresh token.
func (m *TokenManager) IssueAccess(p Profile) (string, error) {
	return m.sign(p, AccessToken, m.accessTTL)
}

func (m *TokenManager) sign(p Profile, typ TokenType, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		Profile:   p,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(p.AccountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Parse verifies the signature, expiry and type of tokenStr.
func (m *TokenManager) Parse(tokenStr string, want TokenType) (*Claims, error) {
	claims := new(Claims)
	// expiry is checked below against the manager's clock
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || !m.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != want {
		return nil, ErrTokenType
	}
	return claims, nil
}
