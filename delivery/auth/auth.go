// Package auth resolves the owner of an HTTP request. Authentication mechanics live
// outside this service; it only maps a request to an owner ID.
package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskboard/delivery/rest/response"
	"taskboard/domain"
)

// HeaderUserID carries the owner ID when header authentication is used
const HeaderUserID = "X-User-ID"

const contextKeyOwnerID = "owner_id"

// Authenticator maps a request to the ID of the owner making it
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// HeaderAuthenticator trusts the X-User-ID header set by an upstream gateway
type HeaderAuthenticator struct{}

// NewHeaderAuthenticator returns an authenticator reading X-User-ID
func NewHeaderAuthenticator() HeaderAuthenticator {
	return HeaderAuthenticator{}
}

func (HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return "", domain.ErrUnauthenticated
	}
	return id, nil
}

// RequireOwner authenticates every request and stores the owner ID in the context.
// Requests without a usable identity are rejected with 401.
func RequireOwner(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, err := a.Authenticate(c.Request)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(contextKeyOwnerID, ownerID)
		c.Next()
	}
}

// OwnerID returns the owner set by RequireOwner, or "" outside an authenticated route
func OwnerID(c *gin.Context) string {
	return c.GetString(contextKeyOwnerID)
}
