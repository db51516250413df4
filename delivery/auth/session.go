package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard/domain"
)

const (
	sessionKeyPrefix  = "session:"
	sessionCookieName = "session"
	defaultSessionTTL = 24 * time.Hour
)

// SessionAuthenticator resolves opaque session tokens stored in Redis as
// session:<token> -> owner ID.
//
// The board never logs anyone in. An external login service owns that flow and
// writes session:<token> with the owner ID as value and its own expiry; this type
// only reads those keys. Issue and Revoke write the same layout and exist for
// operator tooling and tests.
type SessionAuthenticator struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewSessionAuthenticator returns a Redis-backed authenticator
func NewSessionAuthenticator(rdb redis.Cmdable, ttl time.Duration) *SessionAuthenticator {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionAuthenticator{rdb: rdb, ttl: ttl}
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (a *SessionAuthenticator) Authenticate(r *http.Request) (string, error) {
	token := sessionToken(r)
	if token == "" {
		return "", domain.ErrUnauthenticated
	}

	ownerID, err := a.rdb.Get(r.Context(), sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("session lookup: %w: %w", domain.ErrPersistence, err)
	}
	if ownerID == "" {
		return "", domain.ErrUnauthenticated
	}
	return ownerID, nil
}

// Issue creates a session for ownerID and returns its token. It stores the key
// the way the login service does, expiring after the authenticator's TTL.
func (a *SessionAuthenticator) Issue(ctx context.Context, ownerID string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("%w: owner id is required", domain.ErrInvalidArgument)
	}
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	if err := a.rdb.Set(ctx, sessionKeyPrefix+token, ownerID, a.ttl).Err(); err != nil {
		return "", fmt.Errorf("session store: %w: %w", domain.ErrPersistence, err)
	}
	return token, nil
}

// Revoke deletes a session. Revoking an unknown token is not an error.
func (a *SessionAuthenticator) Revoke(ctx context.Context, token string) error {
	if err := a.rdb.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("session revoke: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// sessionToken reads a bearer token, falling back to the session cookie
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func newSessionToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
