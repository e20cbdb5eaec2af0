package authcore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyline/authcore/history"
	"github.com/keyline/authcore/kv"
	"github.com/keyline/authcore/password"
	"github.com/keyline/authcore/refresh"
	"github.com/keyline/authcore/token"
)

// WarnFunc receives non-fatal operational warnings from the engine, such as
// a failed opportunistic hash upgrade. Printf-style.
type WarnFunc func(format string, args ...interface{})

// Builder assembles an [Engine]. Zero configuration yields an in-process
// engine over memory stores; pass a Redis client to share lockout,
// blacklist, and rotation state across processes.
type Builder struct {
	cfg     Config
	cfgSet  bool
	redis   redis.UniversalClient
	users   UserProvider
	kvStore kv.Store
	fams    refresh.Store
	hist    history.Store
	sink    AuditSink
	warn    WarnFunc
	nowFunc func() time.Time
}

// NewBuilder starts a builder over [DefaultConfig].
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cloneConfig(cfg)
	b.cfgSet = true
	return b
}

// WithUserProvider connects the caller's user database. Required.
func (b *Builder) WithUserProvider(p UserProvider) *Builder {
	b.users = p
	return b
}

// WithRedis backs the KV store and refresh-family store with client unless
// those are overridden individually.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithKV overrides the lockout/blacklist store.
func (b *Builder) WithKV(store kv.Store) *Builder {
	b.kvStore = store
	return b
}

// WithFamilyStore overrides the refresh-token family store.
func (b *Builder) WithFamilyStore(store refresh.Store) *Builder {
	b.fams = store
	return b
}

// WithHistoryStore overrides the password-history store.
func (b *Builder) WithHistoryStore(store history.Store) *Builder {
	b.hist = store
	return b
}

// WithAuditSink sets the sink behind the async audit dispatcher. Has no
// effect unless auditing is enabled in the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithWarnFunc routes non-fatal warnings to fn instead of discarding them.
func (b *Builder) WithWarnFunc(fn WarnFunc) *Builder {
	b.warn = fn
	return b
}

// WithTimeFunc overrides the engine clock, for deterministic tests.
func (b *Builder) WithTimeFunc(now func() time.Time) *Builder {
	b.nowFunc = now
	return b
}

// Build validates the configuration, wires defaults for anything not
// explicitly provided, and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	cfg := b.cfg
	if !b.cfgSet {
		cfg = DefaultConfig()
	}
	if err := cfg.resolveTTLSpecs(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("a UserProvider is required")
	}

	now := b.nowFunc
	if now == nil {
		now = time.Now
	}

	kvStore := b.kvStore
	if kvStore == nil {
		if b.redis != nil {
			kvStore = kv.NewRedis(b.redis, "ac")
		} else {
			kvStore = kv.NewMemory()
		}
	}

	fams := b.fams
	if fams == nil {
		if b.redis != nil {
			// Idle families must outlive the tokens that reference them plus
			// the retention window for revoked rows.
			fams = refresh.NewRedis(b.redis, "rf", cfg.Token.RefreshTTL+cfg.Refresh.RevokedRetention)
		} else {
			fams = refresh.NewMemory()
		}
	}

	hist := b.hist
	if hist == nil {
		hist = history.NewMemory()
	}

	tokens, err := token.NewManager(token.Config{
		Secret:          cfg.Token.Secret,
		Issuer:          cfg.Token.Issuer,
		AccessTTL:       cfg.Token.AccessTTL,
		RefreshTTL:      cfg.Token.RefreshTTL,
		MFAChallengeTTL: cfg.Token.MFAChallengeTTL,
		TimeFunc:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	policy := password.NewPolicy(password.PolicyConfig{
		MinLength:      cfg.Password.MinLength,
		RequireUpper:   cfg.Password.RequireUpper,
		RequireLower:   cfg.Password.RequireLower,
		RequireDigit:   cfg.Password.RequireDigit,
		RequireSpecial: cfg.Password.RequireSpecial,
		HistoryDepth:   cfg.Password.HistoryDepth,
		MaxAgeDays:     cfg.Password.MaxAgeDays,
	})

	totpCfg := cfg.TOTP
	if totpCfg.Issuer == "" {
		totpCfg.Issuer = cfg.Token.Issuer
	}

	lockout := NewLockout(kvStore, cfg.Lockout)
	lockout.now = now
	blacklist := NewBlacklist(kvStore)
	blacklist.now = now

	// A throwaway hash verified against unknown identifiers keeps login
	// latency uniform whether or not the account exists.
	dummy := make([]byte, 18)
	if _, err := rand.Read(dummy); err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(hex.EncodeToString(dummy))
	if err != nil {
		return nil, err
	}

	warn := b.warn
	if warn == nil {
		warn = func(format string, args ...interface{}) {
			log.Printf("authcore: "+format, args...)
		}
	}

	return &Engine{
		cfg:       cfg,
		users:     b.users,
		tokens:    tokens,
		hasher:    hasher,
		policy:    policy,
		lockout:   lockout,
		blacklist: blacklist,
		totp:      newTOTPManager(totpCfg),
		families:  fams,
		histories: hist,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.sink),
		warn:      warn,
		now:       now,
		dummyHash: dummyHash,
	}, nil
}
