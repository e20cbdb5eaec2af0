package authcore

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// TokenConfig controls JWT issuance. TTL string fields accept the
// "<number><s|m|h|d>" grammar understood by [ParseTTL].
type TokenConfig struct {
	Secret          []byte        `yaml:"-"`
	Issuer          string        `yaml:"issuer"`
	AccessTTL       time.Duration `yaml:"-"`
	RefreshTTL      time.Duration `yaml:"-"`
	MFAChallengeTTL time.Duration `yaml:"-"`

	AccessTTLSpec       string `yaml:"access_ttl"`
	RefreshTTLSpec      string `yaml:"refresh_ttl"`
	MFAChallengeTTLSpec string `yaml:"mfa_challenge_ttl"`
}

// LockoutConfig controls the brute-force counter.
type LockoutConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Duration    time.Duration `yaml:"-"`

	DurationSpec string `yaml:"duration"`
}

// PasswordConfig carries both the Argon2id cost parameters and the
// strength/history/expiry policy.
type PasswordConfig struct {
	Memory      uint32 `yaml:"memory"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`

	MinLength      int  `yaml:"min_length"`
	RequireUpper   bool `yaml:"require_upper"`
	RequireLower   bool `yaml:"require_lower"`
	RequireDigit   bool `yaml:"require_digit"`
	RequireSpecial bool `yaml:"require_special"`
	HistoryDepth   int  `yaml:"history_depth"`
	MaxAgeDays     int  `yaml:"max_age_days"`
}

// TOTPConfig controls RFC 6238 verification. Skew is the number of
// 30-second steps accepted on either side of the current one.
type TOTPConfig struct {
	Issuer    string `yaml:"issuer"`
	Digits    int    `yaml:"digits"`
	Period    int    `yaml:"period"`
	Skew      int    `yaml:"skew"`
	Algorithm string `yaml:"algorithm"`
}

// RefreshConfig controls refresh-token family retention.
type RefreshConfig struct {
	RevokedRetention time.Duration `yaml:"-"`

	RevokedRetentionSpec string `yaml:"revoked_retention"`
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// Config is the full engine configuration. Obtain a baseline from
// [DefaultConfig] and override what the deployment needs.
type Config struct {
	Token    TokenConfig    `yaml:"token"`
	Lockout  LockoutConfig  `yaml:"lockout"`
	Password PasswordConfig `yaml:"password"`
	TOTP     TOTPConfig     `yaml:"totp"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DefaultConfig returns the baseline configuration: 15m access tokens, 7d
// refresh tokens, 5m MFA challenges, 5 attempts / 15m lockout, argon2id at
// 64 MiB, and the standard SHA1/6/30 TOTP profile.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:       15 * time.Minute,
			RefreshTTL:      7 * 24 * time.Hour,
			MFAChallengeTTL: 5 * time.Minute,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,

			MinLength:      8,
			RequireUpper:   true,
			RequireLower:   true,
			RequireDigit:   true,
			RequireSpecial: false,
			HistoryDepth:   0,
			MaxAgeDays:     0,
		},
		TOTP: TOTPConfig{
			Issuer:    "authcore",
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
		},
		Refresh: RefreshConfig{
			RevokedRetention: 30 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: false},
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return errors.New("token secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if c.Token.MFAChallengeTTL <= 0 {
		return errors.New("mfa challenge TTL must be positive")
	}
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("lockout max attempts must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.Password.MinLength < 1 {
		return errors.New("password min length must be >= 1")
	}
	if c.Password.HistoryDepth < 0 {
		return errors.New("password history depth must be >= 0")
	}
	if c.Password.MaxAgeDays < 0 {
		return errors.New("password max age must be >= 0")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("totp digits must be 6 or 8")
	}
	if c.TOTP.Period < 15 || c.TOTP.Period > 120 {
		return errors.New("totp period out of range")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("totp skew out of range")
	}
	return nil
}

// resolveTTLSpecs parses any populated *Spec string fields into their
// duration counterparts. Explicit duration values win over specs.
func (c *Config) resolveTTLSpecs() error {
	resolve := func(spec string, dst *time.Duration) error {
		if spec == "" {
			return nil
		}
		d, err := ParseTTL(spec)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}

	if err := resolve(c.Token.AccessTTLSpec, &c.Token.AccessTTL); err != nil {
		return fmt.Errorf("access_ttl: %w", err)
	}
	if err := resolve(c.Token.RefreshTTLSpec, &c.Token.RefreshTTL); err != nil {
		return fmt.Errorf("refresh_ttl: %w", err)
	}
	if err := resolve(c.Token.MFAChallengeTTLSpec, &c.Token.MFAChallengeTTL); err != nil {
		return fmt.Errorf("mfa_challenge_ttl: %w", err)
	}
	if err := resolve(c.Lockout.DurationSpec, &c.Lockout.Duration); err != nil {
		return fmt.Errorf("lockout duration: %w", err)
	}
	if err := resolve(c.Refresh.RevokedRetentionSpec, &c.Refresh.RevokedRetention); err != nil {
		return fmt.Errorf("revoked_retention: %w", err)
	}
	return nil
}

// ParseTTL parses a duration of the form "<number><s|m|h|d>", e.g. "15m"
// or "7d". The day unit is 24 hours.
func ParseTTL(spec string) (time.Duration, error) {
	if len(spec) < 2 {
		return 0, fmt.Errorf("invalid ttl %q", spec)
	}

	unit := spec[len(spec)-1]
	n, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid ttl %q", spec)
	}

	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid ttl unit %q", string(unit))
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
