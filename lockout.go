package authcore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/keyline/authcore/kv"
)

// Lockout tracks failed login attempts per identifier and enforces a
// temporary lock once the threshold is reached. Expiry is lazy: both keys
// carry the lockout TTL, so a passed window clears itself on next access
// and no background sweep is needed.
//
// Counters are keyed per identifier only, not per (identifier, IP). An
// attacker spread across many addresses is still throttled by the shared
// per-identifier counter; that is a policy choice, not an oversight.
type Lockout struct {
	store       kv.Store
	maxAttempts int
	duration    time.Duration
	now         func() time.Time
}

// NewLockout creates a Lockout over store.
func NewLockout(store kv.Store, cfg LockoutConfig) *Lockout {
	return &Lockout{
		store:       store,
		maxAttempts: cfg.MaxAttempts,
		duration:    cfg.Duration,
		now:         time.Now,
	}
}

func lockoutAttemptKey(identifier string) string { return "lo:att:" + identifier }

func lockoutUntilKey(identifier string) string { return "lo:until:" + identifier }

// RecordFailure increments the attempt counter for identifier and reports
// whether the account is now locked. Reaching the threshold sets the lock
// and deletes the counter, so the first failure after the lock expires
// starts a fresh count at 1.
func (l *Lockout) RecordFailure(ctx context.Context, identifier string) (bool, error) {
	if _, locked, err := l.Locked(ctx, identifier); err != nil {
		return false, err
	} else if locked {
		return true, nil
	}

	n, err := l.store.Incr(ctx, lockoutAttemptKey(identifier))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 1 {
		if err := l.store.Expire(ctx, lockoutAttemptKey(identifier), l.duration); err != nil {
			return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if n < int64(l.maxAttempts) {
		return false, nil
	}

	until := l.now().Add(l.duration)
	if err := l.store.Set(ctx, lockoutUntilKey(identifier), strconv.FormatInt(until.Unix(), 10), l.duration); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := l.store.Del(ctx, lockoutAttemptKey(identifier)); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}

// Reset clears all lockout state for identifier. Called on successful
// authentication.
func (l *Lockout) Reset(ctx context.Context, identifier string) error {
	if err := l.store.Del(ctx, lockoutAttemptKey(identifier)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := l.store.Del(ctx, lockoutUntilKey(identifier)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Locked reports whether identifier is currently locked and until when.
func (l *Lockout) Locked(ctx context.Context, identifier string) (time.Time, bool, error) {
	val, err := l.store.Get(ctx, lockoutUntilKey(identifier))
	if err == kv.ErrNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: corrupt lockout entry", ErrStoreUnavailable)
	}

	until := time.Unix(unix, 0)
	if !until.After(l.now()) {
		// Store TTL should have removed the key already; clean up anyway.
		_ = l.store.Del(ctx, lockoutUntilKey(identifier))
		return time.Time{}, false, nil
	}
	return until, true, nil
}
