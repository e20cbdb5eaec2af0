package authcore

import (
	"context"
	"errors"

	"github.com/keyline/authcore/refresh"
	"github.com/keyline/authcore/token"
)

// Refresh exchanges a valid refresh token for a brand-new access+refresh
// pair and advances the token's family to the new refresh hash. Presenting a
// superseded token revokes the entire family and returns [ErrRefreshReuse];
// every descendant of that family is dead from that point on.
func (e *Engine) Refresh(ctx context.Context, rawRefresh string) (token.Pair, error) {
	if e == nil {
		return token.Pair{}, ErrEngineNotReady
	}

	payload, err := e.tokens.Verify(rawRefresh, token.TypeRefresh)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return token.Pair{}, mapTokenErr(err)
	}
	if payload.FamilyID == "" {
		e.metrics.Inc(MetricRefreshFailure)
		return token.Pair{}, ErrTokenInvalid
	}

	oldHash := HashToken(rawRefresh)
	revoked, err := e.blacklist.IsBlacklisted(ctx, oldHash)
	if err != nil {
		return token.Pair{}, err
	}
	if revoked {
		e.metrics.Inc(MetricBlacklistHit)
		e.metrics.Inc(MetricRefreshFailure)
		return token.Pair{}, ErrTokenRevoked
	}

	pair, err := e.tokens.Sign(payload)
	if err != nil {
		return token.Pair{}, err
	}

	err = e.families.Rotate(ctx, payload.FamilyID, oldHash, HashToken(pair.RefreshToken))
	switch {
	case err == nil:
		e.metrics.Inc(MetricRefreshSuccess)
		e.emitFamily(ctx, "refresh", payload.SubjectID, payload.FamilyID, true, nil)
		return pair, nil
	case errors.Is(err, refresh.ErrReuse):
		e.metrics.Inc(MetricRefreshReuseDetected)
		e.emitFamily(ctx, "refresh_reuse", payload.SubjectID, payload.FamilyID, false, ErrRefreshReuse)
		return token.Pair{}, ErrRefreshReuse
	case errors.Is(err, refresh.ErrRevoked):
		e.metrics.Inc(MetricRefreshFailure)
		return token.Pair{}, ErrFamilyRevoked
	case errors.Is(err, refresh.ErrNotFound):
		e.metrics.Inc(MetricRefreshFailure)
		return token.Pair{}, ErrFamilyNotFound
	default:
		return token.Pair{}, err
	}
}

// PruneFamilies deletes revoked refresh-token families older than the
// configured retention. Run it from a periodic job; it is not called on any
// request path.
func (e *Engine) PruneFamilies(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.families.Prune(ctx, e.cfg.Refresh.RevokedRetention)
}

func (e *Engine) emitFamily(ctx context.Context, eventType, userID, familyID string, success bool, opErr error) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		UserID:    userID,
		FamilyID:  familyID,
		Success:   success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	e.audit.Emit(ctx, event)
}
