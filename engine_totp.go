package authcore

import "context"

// ProvisionTOTP generates a fresh TOTP secret and enrollment URI for userID.
// Nothing is persisted yet; the secret only becomes active once the user
// proves possession through [Engine.ConfirmTOTPSetup].
func (e *Engine) ProvisionTOTP(ctx context.Context, userID string) (MFAProvision, error) {
	if e == nil {
		return MFAProvision{}, ErrEngineNotReady
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return MFAProvision{}, err
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return MFAProvision{}, err
	}

	return MFAProvision{
		Secret: secret,
		URI:    e.totp.ProvisionURI(secret, user.Identifier),
	}, nil
}

// ConfirmTOTPSetup activates MFA for userID after the user proves they hold
// the provisioned secret by producing one valid code from it.
func (e *Engine) ConfirmTOTPSetup(ctx context.Context, userID, secret, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := e.totp.VerifyCode(secret, code, e.now())
	if err != nil {
		return err
	}
	if !ok {
		e.metrics.Inc(MetricMFAFailure)
		return ErrMFAInvalid
	}

	if err := e.users.EnableMFA(ctx, user.UserID, secret); err != nil {
		return err
	}
	e.emit(ctx, "mfa_enroll", user.UserID, user.Identifier, true, nil)
	return nil
}

// DisableTOTP turns MFA off for userID. A current code is required so a
// hijacked session cannot silently strip the second factor.
func (e *Engine) DisableTOTP(ctx context.Context, userID, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled || user.MFASecret == "" {
		return ErrMFANotEnabled
	}

	ok, err := e.totp.VerifyCode(user.MFASecret, code, e.now())
	if err != nil {
		return err
	}
	if !ok {
		e.metrics.Inc(MetricMFAFailure)
		return ErrMFAInvalid
	}

	if err := e.users.DisableMFA(ctx, user.UserID); err != nil {
		return err
	}
	e.emit(ctx, "mfa_disable", user.UserID, user.Identifier, true, nil)
	return nil
}
