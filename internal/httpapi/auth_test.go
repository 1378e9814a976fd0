package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"storeconsole/internal/domain"
	"storeconsole/internal/session"
	"storeconsole/internal/store"
	"storeconsole/internal/store/memory"
)

func newTestAuth(t *testing.T, tokenTTL, sessionTTL time.Duration) (*AuthManager, *session.MemoryStore) {
	t.Helper()
	sessions := session.NewMemoryStore()
	return NewAuthManager("test-secret-key-with-32-characters", tokenTTL, sessionTTL, memory.NewSeeded(), sessions), sessions
}

func TestLoginBindsTokenToSession(t *testing.T) {
	manager, sessions := newTestAuth(t, time.Hour, time.Hour)

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "operator", Password: "operator123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != "operator" {
		t.Fatalf("expected operator role, got %q", resp.Role)
	}

	actor, err := manager.Authorize(context.Background(), resp.AccessToken)
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if actor.Username != "operator" || actor.SessionID == "" {
		t.Fatalf("unexpected actor %+v", actor)
	}

	if err := sessions.Delete(context.Background(), actor.SessionID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := manager.Authorize(context.Background(), resp.AccessToken); !errors.Is(err, errSessionClosed) {
		t.Fatalf("expected closed session error, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	manager, _ := newTestAuth(t, time.Hour, time.Hour)

	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "nope"})
	if !errors.Is(err, store.ErrInvalidLogin) {
		t.Fatalf("expected invalid login, got %v", err)
	}

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "  ", Password: "admin123"})
	if !errors.Is(err, store.ErrInvalidLogin) {
		t.Fatalf("expected invalid login for blank username, got %v", err)
	}
}

func TestTokenNeverOutlivesSession(t *testing.T) {
	manager, _ := newTestAuth(t, 8*time.Hour, time.Hour)
	now := time.Now().UTC().Truncate(time.Second)
	manager.now = func() time.Time { return now }

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if want := now.Add(time.Hour).Format(time.RFC3339); resp.ExpiresAt != want {
		t.Fatalf("expected token to expire with the session at %s, got %s", want, resp.ExpiresAt)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	manager, _ := newTestAuth(t, time.Hour, time.Hour)
	other := NewAuthManager("another-secret-key-with-32-chars!!", time.Hour, time.Hour, memory.NewSeeded(), session.NewMemoryStore())

	token, err := other.sign("admin", "admin", "ses-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(token); !errors.Is(err, errInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}

	expired, err := manager.sign("admin", "admin", "ses-1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(expired); !errors.Is(err, errInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
