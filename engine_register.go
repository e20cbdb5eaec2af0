package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/keyline/authcore/password"
)

// Register creates an account for identifier and logs it in. The candidate
// password must satisfy the configured policy; the caller's UserProvider is
// responsible for rejecting duplicate identifiers with [ErrUserExists].
func (e *Engine) Register(ctx context.Context, identifier, pass, role string) (RegisterResult, error) {
	if e == nil {
		return RegisterResult{}, ErrEngineNotReady
	}

	if violations := e.policy.Validate(pass); len(violations) > 0 {
		e.metrics.Inc(MetricPasswordPolicyRejected)
		return RegisterResult{}, policyError(violations)
	}

	hash, err := e.hasher.Hash(pass)
	if err != nil {
		return RegisterResult{}, err
	}

	user, err := e.users.CreateUser(ctx, CreateUserInput{
		Identifier:   identifier,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		e.emit(ctx, "register", "", identifier, false, err)
		return RegisterResult{}, err
	}

	// Seed history with the initial hash so it counts against reuse.
	if e.policy.HistoryDepth() > 0 {
		if err := e.histories.Append(ctx, user.UserID, hash); err != nil {
			e.warn("seed password history for user %s: %v", user.UserID, err)
		}
	}

	pair, err := e.issuePair(ctx, user)
	if err != nil {
		return RegisterResult{}, err
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emit(ctx, "register", user.UserID, identifier, true, nil)
	return RegisterResult{
		UserID:       user.UserID,
		Role:         user.Role,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// policyError wraps the violation list in ErrPasswordPolicy so callers can
// both match the sentinel and show the individual failures.
func policyError(violations []password.Violation) error {
	names := make([]string, len(violations))
	for i, v := range violations {
		names[i] = string(v)
	}
	return fmt.Errorf("%w: %s", ErrPasswordPolicy, strings.Join(names, ", "))
}
