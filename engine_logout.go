package authcore

import (
	"context"
	"errors"

	"github.com/keyline/authcore/refresh"
	"github.com/keyline/authcore/token"
)

// Logout revokes one session: both presented tokens go on the blacklist for
// the remainder of their natural lifetime and the refresh token's family is
// terminally revoked. Either token may be empty; an expired token is
// treated as already logged out rather than an error.
func (e *Engine) Logout(ctx context.Context, rawAccess, rawRefresh string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	var userID string

	if rawRefresh != "" {
		payload, err := e.tokens.Verify(rawRefresh, token.TypeRefresh)
		switch {
		case err == nil:
			userID = payload.SubjectID
			if payload.FamilyID != "" {
				if err := e.families.RevokeFamily(ctx, payload.FamilyID); err != nil &&
					!errors.Is(err, refresh.ErrNotFound) {
					return err
				}
			}
			if err := e.blacklistToken(ctx, rawRefresh); err != nil {
				return err
			}
		case errors.Is(err, token.ErrInvalid):
			// Expired or garbage; nothing left to revoke.
		default:
			return mapTokenErr(err)
		}
	}

	if rawAccess != "" {
		payload, err := e.tokens.Verify(rawAccess, token.TypeAccess)
		switch {
		case err == nil:
			userID = payload.SubjectID
			if err := e.blacklistToken(ctx, rawAccess); err != nil {
				return err
			}
		case errors.Is(err, token.ErrInvalid):
		default:
			return mapTokenErr(err)
		}
	}

	e.metrics.Inc(MetricLogout)
	e.emit(ctx, "logout", userID, "", true, nil)
	return nil
}

// LogoutAll revokes every refresh-token family belonging to userID. Access
// tokens already in the wild are stateless and ride out their short TTL;
// only per-session Logout can blacklist an individual access token.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.families.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	e.metrics.Inc(MetricLogoutAll)
	e.emit(ctx, "logout_all", userID, "", true, nil)
	return nil
}

// blacklistToken puts raw on the blacklist until its exp claim.
func (e *Engine) blacklistToken(ctx context.Context, raw string) error {
	exp, err := e.tokens.ExpiresAt(raw)
	if err != nil {
		return mapTokenErr(err)
	}
	return e.blacklist.Add(ctx, HashToken(raw), exp)
}
