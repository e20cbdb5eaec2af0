package authcore

import (
	"context"

	"github.com/keyline/authcore/token"
)

// ConfirmLoginMFA completes a login that [Engine.Login] deferred with an MFA
// challenge. On success the challenge token is blacklisted for the rest of
// its lifetime so it cannot be replayed, and a normal token pair is issued.
// Wrong codes count toward the account's lockout threshold.
func (e *Engine) ConfirmLoginMFA(ctx context.Context, challenge, code string) (LoginResult, error) {
	if e == nil {
		return LoginResult{}, ErrEngineNotReady
	}

	payload, err := e.tokens.Verify(challenge, token.TypeMFAChallenge)
	if err != nil {
		return LoginResult{}, mapTokenErr(err)
	}

	challengeHash := HashToken(challenge)
	used, err := e.blacklist.IsBlacklisted(ctx, challengeHash)
	if err != nil {
		return LoginResult{}, err
	}
	if used {
		e.metrics.Inc(MetricMFAReplay)
		e.emit(ctx, "mfa_confirm", payload.SubjectID, "", false, ErrMFAChallengeReplayed)
		return LoginResult{}, ErrMFAChallengeReplayed
	}

	user, err := e.users.GetUserByID(ctx, payload.SubjectID)
	if err != nil {
		return LoginResult{}, err
	}
	if !user.MFAEnabled || user.MFASecret == "" {
		return LoginResult{}, ErrMFANotEnabled
	}

	ok, err := e.totp.VerifyCode(user.MFASecret, code, e.now())
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		e.metrics.Inc(MetricMFAFailure)
		nowLocked, lockErr := e.lockout.RecordFailure(ctx, user.Identifier)
		if lockErr != nil {
			return LoginResult{}, lockErr
		}
		if nowLocked {
			e.metrics.Inc(MetricLockoutTriggered)
			lockedErr := e.lockedError(e.now().Add(e.cfg.Lockout.Duration))
			e.emit(ctx, "mfa_confirm", user.UserID, user.Identifier, false, lockedErr)
			return LoginResult{}, lockedErr
		}
		e.emit(ctx, "mfa_confirm", user.UserID, user.Identifier, false, ErrMFAInvalid)
		return LoginResult{}, ErrMFAInvalid
	}

	// Consume the challenge before minting anything.
	if err := e.blacklistToken(ctx, challenge); err != nil {
		return LoginResult{}, err
	}
	if err := e.lockout.Reset(ctx, user.Identifier); err != nil {
		return LoginResult{}, err
	}

	pair, err := e.issuePair(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	e.metrics.Inc(MetricMFASuccess)
	e.metrics.Inc(MetricLoginSuccess)
	e.emit(ctx, "mfa_confirm", user.UserID, user.Identifier, true, nil)
	return LoginResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}
