package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/domain"
)

func TestHeaderAuthenticator(t *testing.T) {
	a := NewHeaderAuthenticator()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := a.Authenticate(req)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	req.Header.Set(HeaderUserID, "  ")
	_, err = a.Authenticate(req)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	req.Header.Set(HeaderUserID, "alice")
	id, err := a.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", id)
}

func TestRequireOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireOwner(NewHeaderAuthenticator()), func(c *gin.Context) {
		c.String(http.StatusOK, OwnerID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"unauthenticated"`)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, "alice")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())
}

func TestSessionToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{name: "bearer", header: "Bearer abc123", want: "abc123"},
		{name: "lowercase scheme", header: "bearer abc123", want: "abc123"},
		{name: "other scheme", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "cookie", cookie: "c00kie", want: "c00kie"},
		{name: "header wins over cookie", header: "Bearer h", cookie: "c", want: "h"},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, sessionToken(req))
		})
	}
}

func TestSessionAuthenticatorWithoutToken(t *testing.T) {
	a := NewSessionAuthenticator(nil, 0)
	_, err := a.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestSessionAuthenticatorAgainstRedis(t *testing.T) {
	addr := os.Getenv("TASKBOARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TASKBOARD_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	a := NewSessionAuthenticator(rdb, time.Minute)
	token, err := a.Issue(ctx, "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	id, err := a.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	require.NoError(t, a.Revoke(ctx, token))
	_, err = a.Authenticate(req)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	// keys written by the login service directly
	require.NoError(t, rdb.Set(ctx, "session:external-token", "bob", time.Minute).Err())
	t.Cleanup(func() { rdb.Del(context.Background(), "session:external-token") })

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "external-token"})
	id, err = a.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "bob", id)
}
