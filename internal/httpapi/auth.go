package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"storeconsole/internal/domain"
	"storeconsole/internal/session"
	"storeconsole/internal/store"
)

var (
	errInvalidToken  = errors.New("invalid or expired token")
	errSessionClosed = errors.New("session has ended")
	errInactive      = errors.New("account is inactive")
)

// Authenticator checks operator credentials. Store backends implement it.
type Authenticator interface {
	Authenticate(ctx context.Context, username string, password string) (domain.UserAccount, error)
}

type AuthManager struct {
	secret     []byte
	tokenTTL   time.Duration
	sessionTTL time.Duration
	users      Authenticator
	sessions   session.Store
	now        func() time.Time
}

type consoleClaims struct {
	jwtlib.RegisteredClaims
	Role      string `json:"role"`
	SessionID string `json:"sid"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, sessionTTL time.Duration, users Authenticator, sessions session.Store) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if sessionTTL <= 0 {
		sessionTTL = tokenTTL
	}

	return &AuthManager{
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		sessionTTL: sessionTTL,
		users:      users,
		sessions:   sessions,
		now:        time.Now,
	}
}

// Login checks the credentials against the backend and opens a session.
// The token never outlives its session.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || strings.TrimSpace(req.Password) == "" {
		return domain.LoginResponse{}, store.ErrInvalidLogin
	}

	user, err := a.users.Authenticate(ctx, username, req.Password)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if !user.Active {
		return domain.LoginResponse{}, errInactive
	}

	now := a.now().UTC()
	sess := session.New(user.Username, user.Role, now, a.sessionTTL)
	if err := a.sessions.Create(ctx, sess); err != nil {
		return domain.LoginResponse{}, fmt.Errorf("create session: %w", err)
	}

	expiresAt := now.Add(a.tokenTTL)
	if sess.ExpiresAt.Before(expiresAt) {
		expiresAt = sess.ExpiresAt
	}
	token, err := a.sign(user.Username, user.Role, sess.ID, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	zap.L().Info("operator logged in", zap.String("username", user.Username), zap.String("role", user.Role), zap.String("session_id", sess.ID))
	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &consoleClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.SessionID == "" {
		return domain.Actor{}, errInvalidToken
	}
	return domain.Actor{Username: sub, Role: claims.Role, SessionID: claims.SessionID}, nil
}

// Authorize parses the token and checks that its session is still open.
func (a *AuthManager) Authorize(ctx context.Context, tokenStr string) (domain.Actor, error) {
	actor, err := a.ParseToken(tokenStr)
	if err != nil {
		return domain.Actor{}, err
	}
	sess, err := a.sessions.Get(ctx, actor.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return domain.Actor{}, errSessionClosed
	}
	if err != nil {
		return domain.Actor{}, err
	}
	if sess.Username != actor.Username {
		return domain.Actor{}, errInvalidToken
	}
	return actor, nil
}

func (a *AuthManager) sign(username, role, sessionID string, expiresAt time.Time) (string, error) {
	claims := consoleClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "storeconsole",
		},
		Role:      role,
		SessionID: sessionID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
