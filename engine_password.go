package authcore

import "context"

// ChangePassword rotates userID's password after verifying the current one.
// The new password must pass policy and must not match recent history.
// Every session is revoked on success; the caller re-authenticates.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPass, newPass string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	match, err := e.hasher.Verify(oldPass, user.PasswordHash)
	if err != nil {
		return err
	}
	if !match {
		e.emit(ctx, "password_change", user.UserID, user.Identifier, false, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	if err := e.setPassword(ctx, user, newPass); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordChangeSuccess)
	e.emit(ctx, "password_change", user.UserID, user.Identifier, true, nil)
	return nil
}

// ResetPassword sets a new password without the current one. This is the
// administrative path behind an out-of-band proof such as a verified reset
// link; the engine does not issue those proofs itself.
func (e *Engine) ResetPassword(ctx context.Context, userID, newPass string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := e.setPassword(ctx, user, newPass); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordResetSuccess)
	e.emit(ctx, "password_reset", user.UserID, user.Identifier, true, nil)
	return nil
}

// setPassword runs policy and history checks, persists the new hash, records
// it in history, and revokes all sessions.
func (e *Engine) setPassword(ctx context.Context, user UserRecord, newPass string) error {
	if violations := e.policy.Validate(newPass); len(violations) > 0 {
		e.metrics.Inc(MetricPasswordPolicyRejected)
		return policyError(violations)
	}

	reused, err := e.policy.CheckHistory(ctx, user.UserID, newPass, e.hasher, e.histories)
	if err != nil {
		return err
	}
	if reused {
		e.metrics.Inc(MetricPasswordPolicyRejected)
		return ErrPasswordReuse
	}

	// The current hash also counts as reuse even when it never made it into
	// the history store.
	if e.policy.HistoryDepth() > 0 {
		match, err := e.hasher.Verify(newPass, user.PasswordHash)
		if err != nil {
			return err
		}
		if match {
			e.metrics.Inc(MetricPasswordPolicyRejected)
			return ErrPasswordReuse
		}
	}

	newHash, err := e.hasher.Hash(newPass)
	if err != nil {
		return err
	}

	if err := e.users.UpdatePasswordHash(ctx, user.UserID, newHash, e.now()); err != nil {
		return err
	}

	if depth := e.policy.HistoryDepth(); depth > 0 {
		if err := e.histories.Append(ctx, user.UserID, newHash); err != nil {
			e.warn("append password history for user %s: %v", user.UserID, err)
		}
		if err := e.histories.Prune(ctx, user.UserID, depth); err != nil {
			e.warn("prune password history for user %s: %v", user.UserID, err)
		}
	}

	// A changed password invalidates every outstanding session.
	if err := e.families.RevokeAllForUser(ctx, user.UserID); err != nil {
		return err
	}
	return nil
}
