// Package token signs and verifies the engine's HMAC-SHA256 JWTs. Tokens are
// self-contained so verification never touches a store; revocation and
// rotation tracking live in the blacklist and refresh-family components
// layered above.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type is the token-class discriminator embedded in every claim set. It
// prevents a refresh token from passing where an access token is required
// and vice versa.
type Type string

const (
	// TypeAccess marks short-lived bearer tokens.
	TypeAccess Type = "access"
	// TypeRefresh marks rotation-tracked refresh tokens.
	TypeRefresh Type = "refresh"
	// TypeMFAChallenge marks the short-lived login challenge issued when a
	// password check succeeds on an MFA-enabled account.
	TypeMFAChallenge Type = "mfa"
)

// ErrInvalid covers malformed, badly signed, and expired tokens.
var ErrInvalid = errors.New("invalid token")

// ErrWrongType is returned when a structurally valid token carries a type
// discriminator other than the one the caller required.
var ErrWrongType = errors.New("wrong token type")

// Payload is the identity claim carried by every token. FamilyID is set only
// on refresh tokens; it names the rotation family the token belongs to so a
// superseded token can still be traced back for cascade revocation.
type Payload struct {
	SubjectID string
	Role      string
	FamilyID  string
}

// Pair holds one access token and one refresh token for the same subject.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Config for a [Manager]. TimeFunc is optional and exists for deterministic
// expiry tests; it defaults to time.Now.
type Config struct {
	Secret          []byte
	Issuer          string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	MFAChallengeTTL time.Duration
	TimeFunc        func() time.Time
}

// Manager signs and verifies tokens with a single HS256 secret. Instances
// are immutable after construction and safe for concurrent use.
type Manager struct {
	config Config
}

type claims struct {
	Role      string `json:"role"`
	TokenType Type   `json:"type"`
	FamilyID  string `json:"fam,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires a secret")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.MFAChallengeTTL <= 0 {
		cfg.MFAChallengeTTL = 5 * time.Minute
	}
	if cfg.TimeFunc == nil {
		cfg.TimeFunc = time.Now
	}
	return &Manager{config: cfg}, nil
}

// Sign mints an access+refresh pair for payload. The two tokens are signed
// independently with their own TTLs and type discriminators; the family
// claim goes on the refresh token only.
func (m *Manager) Sign(payload Payload) (Pair, error) {
	accessPayload := payload
	accessPayload.FamilyID = ""

	access, err := m.mint(accessPayload, TypeAccess, m.config.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := m.mint(payload, TypeRefresh, m.config.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// SignChallenge mints a short-lived MFA challenge token for payload.
func (m *Manager) SignChallenge(payload Payload) (string, error) {
	return m.mint(payload, TypeMFAChallenge, m.config.MFAChallengeTTL)
}

// parser builds the shared parser options. When an issuer is configured the
// iss claim is validated too, so a token minted by a different deployment
// sharing the secret does not pass.
func (m *Manager) parser() *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.config.TimeFunc),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}
	return jwt.NewParser(opts...)
}

// Verify checks structure, signature, expiry, and issuer, then requires the
// token's type discriminator to equal want. It never consults external state.
func (m *Manager) Verify(tokenStr string, want Type) (Payload, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return Payload{}, ErrInvalid
	}

	parsed, err := m.parser().ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return Payload{}, ErrInvalid
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return Payload{}, ErrInvalid
	}
	if c.TokenType != want {
		return Payload{}, ErrWrongType
	}

	return Payload{SubjectID: c.Subject, Role: c.Role, FamilyID: c.FamilyID}, nil
}

// Refresh verifies rawRefresh as a refresh token and mints a brand-new pair
// for the same subject and role. Rotation bookkeeping (hash compare-and-set,
// reuse detection) is the caller's concern.
func (m *Manager) Refresh(rawRefresh string) (Pair, error) {
	payload, err := m.Verify(rawRefresh, TypeRefresh)
	if err != nil {
		return Pair{}, err
	}
	return m.Sign(payload)
}

// ExpiresAt returns the exp claim of a token that already passed Verify.
// Logout uses it to bound blacklist entries to the token's natural TTL.
func (m *Manager) ExpiresAt(tokenStr string) (time.Time, error) {
	parsed, err := m.parser().ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return time.Time{}, ErrInvalid
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.ExpiresAt == nil {
		return time.Time{}, ErrInvalid
	}
	return c.ExpiresAt.Time, nil
}

func (m *Manager) mint(payload Payload, typ Type, ttl time.Duration) (string, error) {
	now := m.config.TimeFunc()

	c := claims{
		Role:      payload.Role,
		TokenType: typ,
		FamilyID:  payload.FamilyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: payload.SubjectID,
			// A random jti keeps two tokens minted in the same second from
			// being byte-identical, which rotation bookkeeping depends on.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.config.Issuer != "" {
		c.Issuer = m.config.Issuer
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.config.Secret)
}
