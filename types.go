package authcore

import (
	"context"
	"time"
)

// UserRecord is the account view consumed by the engine. The user table
// itself is owned by the caller; the engine only reads and updates the
// security-relevant fields below through [UserProvider].
type UserRecord struct {
	UserID            string
	Identifier        string
	Role              string
	PasswordHash      string
	PasswordChangedAt *time.Time
	MFAEnabled        bool
	MFASecret         string
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Identifier   string
	PasswordHash string
	Role         string
}

// UserProvider is the interface callers implement to connect the engine to
// their user database. Implementations must return [ErrUserNotFound] for
// unknown users and [ErrUserExists] for duplicate identifiers.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string, changedAt time.Time) error
	EnableMFA(ctx context.Context, userID, secret string) error
	DisableMFA(ctx context.Context, userID string) error
}

// LoginResult is returned by [Engine.Login]. When MFARequired is set the
// token fields are empty and MFAChallenge carries a short-lived challenge
// token to present to [Engine.ConfirmLoginMFA] together with a TOTP code.
type LoginResult struct {
	AccessToken  string
	RefreshToken string

	MFARequired  bool
	MFAChallenge string
}

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	UserID       string
	Role         string
	AccessToken  string
	RefreshToken string
}

// MFAProvision holds the raw base32 secret and otpauth:// URI produced by
// [Engine.ProvisionTOTP]. The secret is not active until confirmed.
type MFAProvision struct {
	Secret string
	URI    string
}
