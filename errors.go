package authcore

import "errors"

var (
	// ErrInvalidCredentials is returned when the identifier/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid is returned for malformed, badly signed, or expired tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned when a presented token is on the blacklist.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrWrongTokenType is returned when a token's type discriminator does not match the operation.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrAccountLocked is returned while a lockout window is active.
	ErrAccountLocked = errors.New("account locked")
	// ErrPasswordExpired is returned when the stored password is past its configured max age.
	ErrPasswordExpired = errors.New("password expired")
	// ErrMFARequired signals that login must continue through ConfirmLoginMFA.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFANotEnabled is returned when an MFA operation targets an account without MFA.
	ErrMFANotEnabled = errors.New("mfa not enabled")
	// ErrMFAInvalid is returned for a wrong TOTP code.
	ErrMFAInvalid = errors.New("invalid mfa code")
	// ErrMFAChallengeReplayed is returned when a consumed MFA challenge token is presented again.
	ErrMFAChallengeReplayed = errors.New("mfa challenge replayed")
	// ErrRefreshReuse is returned when a superseded refresh token is presented.
	// The owning family is revoked as a side effect before this error surfaces.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrFamilyNotFound is returned when no refresh-token family matches.
	ErrFamilyNotFound = errors.New("refresh token family not found")
	// ErrFamilyRevoked is returned when the refresh-token family is terminally revoked.
	ErrFamilyRevoked = errors.New("refresh token family revoked")
	// ErrPasswordPolicy is returned when a candidate password fails validation.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when a candidate password matches recent history.
	ErrPasswordReuse = errors.New("password was used recently")
	// ErrUserNotFound is returned by user-targeted admin operations. Login
	// paths fold it into ErrInvalidCredentials for enumeration resistance.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registration targets a taken identifier.
	ErrUserExists = errors.New("user already exists")
	// ErrStoreUnavailable wraps storage-layer failures.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Kind is the transport-facing classification of an engine error. HTTP layers
// map kinds to status codes without inspecting individual sentinels.
type Kind uint8

const (
	// KindInternal covers crypto/storage failures and unclassified errors.
	KindInternal Kind = iota
	// KindUnauthorized covers bad credentials and invalid/revoked tokens.
	KindUnauthorized
	// KindForbidden covers lockout, password expiry, and missing MFA enrollment.
	KindForbidden
	// KindConflict covers detected refresh-token reuse.
	KindConflict
	// KindBadRequest covers password policy and history rejections.
	KindBadRequest
	// KindNotFound covers unknown refresh-token families and users.
	KindNotFound
)

// KindOf classifies err. Reuse maps to Conflict rather than Unauthorized
// because the cascade revocation side effect has already happened by the
// time the error surfaces.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrRefreshReuse):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrWrongTokenType),
		errors.Is(err, ErrMFAInvalid),
		errors.Is(err, ErrMFAChallengeReplayed),
		errors.Is(err, ErrFamilyRevoked):
		return KindUnauthorized
	case errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrPasswordExpired),
		errors.Is(err, ErrMFARequired),
		errors.Is(err, ErrMFANotEnabled):
		return KindForbidden
	case errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrPasswordReuse),
		errors.Is(err, ErrUserExists):
		return KindBadRequest
	case errors.Is(err, ErrFamilyNotFound),
		errors.Is(err, ErrUserNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
