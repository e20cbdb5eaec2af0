// Package authcore is an embeddable account-security engine: JWT issuance
// and verification, refresh-token rotation with theft detection, a logout
// blacklist, brute-force lockout, TOTP second factors, and password policy
// with history and expiry. The caller owns the user table and connects it
// through [UserProvider]; everything else is handled here.
package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keyline/authcore/history"
	"github.com/keyline/authcore/password"
	"github.com/keyline/authcore/refresh"
	"github.com/keyline/authcore/token"
)

// Engine is the assembled security engine. Construct it with [Builder];
// instances are safe for concurrent use.
type Engine struct {
	cfg       Config
	users     UserProvider
	tokens    *token.Manager
	hasher    *password.Argon2
	policy    *password.Policy
	lockout   *Lockout
	blacklist *Blacklist
	totp      *totpManager
	families  refresh.Store
	histories history.Store
	metrics   *Metrics
	audit     *auditDispatcher
	warn      WarnFunc
	now       func() time.Time
	dummyHash string
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns a deep copy of all counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// VerifyAccessToken checks signature, expiry, and type, then consults the
// blacklist. This is the call HTTP middleware makes per request.
func (e *Engine) VerifyAccessToken(ctx context.Context, rawAccess string) (token.Payload, error) {
	if e == nil {
		return token.Payload{}, ErrEngineNotReady
	}

	payload, err := e.tokens.Verify(rawAccess, token.TypeAccess)
	if err != nil {
		return token.Payload{}, mapTokenErr(err)
	}

	revoked, err := e.blacklist.IsBlacklisted(ctx, HashToken(rawAccess))
	if err != nil {
		return token.Payload{}, err
	}
	if revoked {
		e.metrics.Inc(MetricBlacklistHit)
		return token.Payload{}, ErrTokenRevoked
	}
	return payload, nil
}

// Login authenticates identifier/password. On an MFA-enabled account a
// successful password check returns an MFA challenge instead of tokens;
// finish with [Engine.ConfirmLoginMFA].
func (e *Engine) Login(ctx context.Context, identifier, pass string) (LoginResult, error) {
	if e == nil {
		return LoginResult{}, ErrEngineNotReady
	}
	start := e.now()

	if until, locked, err := e.lockout.Locked(ctx, identifier); err != nil {
		return LoginResult{}, err
	} else if locked {
		e.metrics.Inc(MetricLoginLocked)
		lockedErr := e.lockedError(until)
		e.emit(ctx, "login", "", identifier, false, lockedErr)
		return LoginResult{}, lockedErr
	}

	user, err := e.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn a hash verification so unknown identifiers cost the same
			// as wrong passwords.
			_, _ = e.hasher.Verify(pass, e.dummyHash)
			return LoginResult{}, e.failLogin(ctx, "", identifier)
		}
		return LoginResult{}, err
	}

	match, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil || !match {
		return LoginResult{}, e.failLogin(ctx, user.UserID, identifier)
	}

	if err := e.lockout.Reset(ctx, identifier); err != nil {
		return LoginResult{}, err
	}

	if e.policy.Expired(user.PasswordChangedAt, e.now()) {
		e.emit(ctx, "login", user.UserID, identifier, false, ErrPasswordExpired)
		return LoginResult{}, ErrPasswordExpired
	}

	e.maybeUpgradeHash(ctx, user, pass)

	if user.MFAEnabled {
		challenge, err := e.tokens.SignChallenge(token.Payload{SubjectID: user.UserID, Role: user.Role})
		if err != nil {
			return LoginResult{}, err
		}
		e.metrics.Inc(MetricMFAChallengeIssued)
		e.emit(ctx, "login_mfa_challenge", user.UserID, identifier, true, nil)
		return LoginResult{MFARequired: true, MFAChallenge: challenge}, nil
	}

	pair, err := e.issuePair(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.metrics.Observe(MetricLoginLatency, e.now().Sub(start))
	e.emit(ctx, "login", user.UserID, identifier, true, nil)
	return LoginResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// failLogin records a failed attempt and folds the outcome into
// ErrInvalidCredentials or ErrAccountLocked.
func (e *Engine) failLogin(ctx context.Context, userID, identifier string) error {
	nowLocked, err := e.lockout.RecordFailure(ctx, identifier)
	if err != nil {
		return err
	}

	e.metrics.Inc(MetricLoginFailure)
	if nowLocked {
		e.metrics.Inc(MetricLockoutTriggered)
		lockedErr := e.lockedError(e.now().Add(e.cfg.Lockout.Duration))
		e.emit(ctx, "lockout", userID, identifier, false, lockedErr)
		return lockedErr
	}
	e.emit(ctx, "login", userID, identifier, false, ErrInvalidCredentials)
	return ErrInvalidCredentials
}

// lockedError wraps ErrAccountLocked with the remaining lock time so a
// transport layer can tell the caller when to retry.
func (e *Engine) lockedError(until time.Time) error {
	return fmt.Errorf("%w: retry after %s", ErrAccountLocked, until.Sub(e.now()).Round(time.Second))
}

// maybeUpgradeHash rehashes the password opportunistically when the stored
// hash was produced with weaker parameters. Failures only warn; the login
// already succeeded.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user UserRecord, pass string) {
	upgrade, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !upgrade {
		return
	}

	newHash, err := e.hasher.Hash(pass)
	if err != nil {
		e.warn("hash upgrade for user %s: %v", user.UserID, err)
		return
	}

	changedAt := e.now()
	if user.PasswordChangedAt != nil {
		// An upgrade is not a password change; keep the expiry clock as-is.
		changedAt = *user.PasswordChangedAt
	}
	if err := e.users.UpdatePasswordHash(ctx, user.UserID, newHash, changedAt); err != nil {
		e.warn("hash upgrade for user %s: %v", user.UserID, err)
	}
}

// issuePair mints a token pair for user and opens a fresh refresh-token
// family holding the refresh token's hash.
func (e *Engine) issuePair(ctx context.Context, user UserRecord) (token.Pair, error) {
	famID := uuid.NewString()
	pair, err := e.tokens.Sign(token.Payload{
		SubjectID: user.UserID,
		Role:      user.Role,
		FamilyID:  famID,
	})
	if err != nil {
		return token.Pair{}, err
	}

	if _, err := e.families.Create(ctx, famID, user.UserID, HashToken(pair.RefreshToken)); err != nil {
		return token.Pair{}, err
	}
	return pair, nil
}

// emit sends one audit event through the dispatcher.
func (e *Engine) emit(ctx context.Context, eventType, userID, identifier string, success bool, opErr error) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp:  e.now(),
		EventType:  eventType,
		UserID:     userID,
		Identifier: identifier,
		Success:    success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	e.audit.Emit(ctx, event)
}

// mapTokenErr translates token-package sentinels to engine sentinels.
func mapTokenErr(err error) error {
	switch {
	case errors.Is(err, token.ErrWrongType):
		return ErrWrongTokenType
	case errors.Is(err, token.ErrInvalid):
		return ErrTokenInvalid
	default:
		return err
	}
}
