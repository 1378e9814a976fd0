package session

import (
	"context"
	"errors"
	"time"

	"storeconsole/internal/xid"
)

var ErrNotFound = errors.New("session not found")

// Preferences are the per-operator display settings that survive between
// requests.
type Preferences struct {
	OnlyDailyOrders bool `json:"onlyDailyOrders"`
}

type Session struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Role        string      `json:"role"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	Preferences Preferences `json:"preferences"`
}

func New(username string, role string, now time.Time, ttl time.Duration) Session {
	return Session{
		ID:        xid.New("ses"),
		Username:  username,
		Role:      role,
		CreatedAt: now.UTC(),
		ExpiresAt: now.UTC().Add(ttl),
	}
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	UpdatePreferences(ctx context.Context, id string, prefs Preferences) (Session, error)
	Delete(ctx context.Context, id string) error
}
