package password

import (
	"context"
	"fmt"
	"time"
	"unicode"
)

// PolicyConfig controls strength validation, reuse history, and expiry.
// HistoryDepth 0 disables the reuse check; MaxAgeDays 0 disables expiry.
type PolicyConfig struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
	HistoryDepth   int
	MaxAgeDays     int
}

// Violation names one failed strength rule. Validate reports all of them at
// once so the caller can show the user the complete list.
type Violation string

const (
	ViolationTooShort  Violation = "too_short"
	ViolationNoUpper   Violation = "missing_uppercase"
	ViolationNoLower   Violation = "missing_lowercase"
	ViolationNoDigit   Violation = "missing_digit"
	ViolationNoSpecial Violation = "missing_special"
)

// HistorySource yields the most recent password hashes for a user, newest
// first. Satisfied by the history package's stores.
type HistorySource interface {
	RecentHashes(ctx context.Context, userID string, n int) ([]string, error)
}

// Policy evaluates candidate passwords. It is stateless and safe for
// concurrent use.
type Policy struct {
	config PolicyConfig
}

// NewPolicy creates a Policy from cfg.
func NewPolicy(cfg PolicyConfig) *Policy {
	return &Policy{config: cfg}
}

// HistoryDepth returns the configured reuse-history depth.
func (p *Policy) HistoryDepth() int {
	return p.config.HistoryDepth
}

// Validate runs every configured strength rule against candidate and
// returns the full violation list; an empty slice means the password is
// acceptable. Checks are not short-circuited.
func (p *Policy) Validate(candidate string) []Violation {
	var violations []Violation

	if len(candidate) < p.config.MinLength {
		violations = append(violations, ViolationTooShort)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if p.config.RequireUpper && !hasUpper {
		violations = append(violations, ViolationNoUpper)
	}
	if p.config.RequireLower && !hasLower {
		violations = append(violations, ViolationNoLower)
	}
	if p.config.RequireDigit && !hasDigit {
		violations = append(violations, ViolationNoDigit)
	}
	if p.config.RequireSpecial && !hasSpecial {
		violations = append(violations, ViolationNoSpecial)
	}

	return violations
}

// CheckHistory reports whether candidate matches any of the user's most
// recent stored hashes. Comparison goes through the hasher's Verify
// primitive since stored hashes are salted. Returns false immediately when
// history is disabled.
func (p *Policy) CheckHistory(ctx context.Context, userID, candidate string, verifier Verifier, source HistorySource) (bool, error) {
	if p.config.HistoryDepth <= 0 {
		return false, nil
	}

	hashes, err := source.RecentHashes(ctx, userID, p.config.HistoryDepth)
	if err != nil {
		return false, fmt.Errorf("load password history: %w", err)
	}

	for _, h := range hashes {
		match, err := verifier.Verify(candidate, h)
		if err != nil {
			return false, fmt.Errorf("verify against history: %w", err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// Expired reports whether a password last changed at changedAt is past the
// configured max age. Always false when max age is disabled or the change
// time was never tracked.
func (p *Policy) Expired(changedAt *time.Time, now time.Time) bool {
	if p.config.MaxAgeDays <= 0 || changedAt == nil {
		return false
	}
	maxAge := time.Duration(p.config.MaxAgeDays) * 24 * time.Hour
	return now.Sub(*changedAt) > maxAge
}
