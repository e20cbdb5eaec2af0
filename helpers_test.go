package authcore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockUserProvider struct {
	mu           sync.Mutex
	users        map[string]UserRecord
	byIdentifier map[string]string

	updatePasswordCalls int
}

func newMockUsers() *mockUserProvider {
	return &mockUserProvider{
		users:        make(map[string]UserRecord),
		byIdentifier: make(map[string]string),
	}
}

func (m *mockUserProvider) addUser(user UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UserID] = user
	m.byIdentifier[user.Identifier] = user.UserID
}

func (m *mockUserProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.byIdentifier[identifier]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return m.users[userID], nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserProvider) CreateUser(_ context.Context, input CreateUserInput) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byIdentifier[input.Identifier]; taken {
		return UserRecord{}, ErrUserExists
	}

	now := time.Now()
	user := UserRecord{
		UserID:            fmt.Sprintf("u%d", len(m.users)+1),
		Identifier:        input.Identifier,
		Role:              input.Role,
		PasswordHash:      input.PasswordHash,
		PasswordChangedAt: &now,
	}
	m.users[user.UserID] = user
	m.byIdentifier[user.Identifier] = user.UserID
	return user, nil
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, userID, newHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updatePasswordCalls++
	user, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = newHash
	user.PasswordChangedAt = &changedAt
	m.users[userID] = user
	return nil
}

func (m *mockUserProvider) EnableMFA(_ context.Context, userID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.MFAEnabled = true
	user.MFASecret = secret
	m.users[userID] = user
	return nil
}

func (m *mockUserProvider) DisableMFA(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.MFAEnabled = false
	user.MFASecret = ""
	m.users[userID] = user
	return nil
}

// newTestConfig keeps argon at the package floor so hashing does not
// dominate the suite's runtime.
func newTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.Issuer = "authcore-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, up UserProvider) *Engine {
	t.Helper()

	engine, err := NewBuilder().
		WithConfig(cfg).
		WithUserProvider(up).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// registerTestUser registers identifier/password and returns the result.
func registerTestUser(t *testing.T, engine *Engine, identifier, pass string) RegisterResult {
	t.Helper()

	result, err := engine.Register(context.Background(), identifier, pass, "member")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return result
}
