package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestChangePasswordRequiresCurrentPassword(t *testing.T) {
	engine := newTestEngine(t, newTestConfig(), newMockUsers())
	ctx := context.Background()

	result := registerTestUser(t, engine, "alice@example.com", "Sup3rSecret")

	err := engine.ChangePassword(ctx, result.UserID, "wrong-old", "N3wPassword")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestChangePasswordEnforcesPolicy(t *testing.T) {
	engine := newTestEngine(t, newTestConfig(), newMockUsers())
	ctx := context.Background()

	result := registerTestUser(t, engine, "alice@example.com", "Sup3rSecret")

	err := engine.ChangePassword(ctx, result.UserID, "Sup3rSecret", "weak")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("err = %v, want ErrPasswordPolicy", err)
	}
}

func TestChangePasswordRejectsRecentReuse(t *testing.T) {
	cfg := newTestConfig()
	cfg.Password.HistoryDepth = 3
	engine := newTestEngine(t, cfg, newMockUsers())
	ctx := context.Background()

	result := registerTestUser(t, engine, "alice@example.com", "Sup3rSecret")

	// Reusing the current password is refused outright.
	if err := engine.ChangePassword(ctx, result.UserID, "Sup3rSecret", "Sup3rSecret"); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("err = %v, want ErrPasswordReuse", err)
	}

	if err := engine.ChangePassword(ctx, result.UserID, "Sup3rSecret", "N3wPassword"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	// The original is still in the history window.
	if err := engine.ChangePassword(ctx, result.UserID, "N3wPassword", "Sup3rSecret"); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("err = %v, want ErrPasswordReuse from history", err)
	}
}

func TestChangePasswordRevokesAllSessions(t *testing.T) {
	engine := newTestEngine(t, newTestConfig(), newMockUsers())
	ctx := context.Background()

	result := registerTestUser(t, engine, "alice@example.com", "Sup3rSecret")

	if err := engine.ChangePassword(ctx, result.UserID, "Sup3rSecret", "N3wPassword"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrFamilyRevoked) {
		t.Fatalf("err = %v, want ErrFamilyRevoked after password change", err)
	}

	if _, err := engine.Login(ctx, "alice@example.com", "N3wPassword"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "Sup3rSecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password err = %v, want ErrInvalidCredentials", err)
	}
}

func TestResetPasswordSkipsOldPassword(t *testing.T) {
	up := newMockUsers()
	engine := newTestEngine(t, newTestConfig(), up)
	ctx := context.Background()

	result := registerTestUser(t, engine, "alice@example.com", "Sup3rSecret")

	if err := engine.ResetPassword(ctx, result.UserID, "R3covered!"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "R3covered!"); err != nil {
		t.Fatalf("login after reset failed: %v", err)
	}

	if err := engine.ResetPassword(ctx, "no-such-user", "R3covered!"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}
