// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements optional HTTP Basic authentication for the ingestion
// endpoints. Tracking clients may send credentials; when they match a stored
// user, that user owns the trackpoints the request produces. Requests without
// credentials, or with wrong ones, are still accepted and simply carry no user.
package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-location-broker/internal/domain"
)

const (
	// ctxKeyUser holds the authenticated *domain.User.
	ctxKeyUser = "user"
	// ctxKeyUserID holds the user id as a string for logging and rate limiting.
	ctxKeyUserID = "userID"
)

// Authenticator verifies a username/password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
}

// OptionalBasicAuth attaches the user identified by the request's Basic
// credentials, if any. It never rejects a request.
func OptionalBasicAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok || username == "" || auth == nil {
			c.Next()
			return
		}
		u, err := auth.Authenticate(c.Request.Context(), username, password)
		if err != nil {
			LoggerFrom(c).Warn().Str("username", username).Err(err).Msg("basic auth rejected")
			c.Next()
			return
		}
		c.Set(ctxKeyUser, u)
		c.Set(ctxKeyUserID, strconv.FormatUint(uint64(u.ID), 10))
		c.Next()
	}
}

// UserFrom returns the user attached by OptionalBasicAuth, or nil.
func UserFrom(c *gin.Context) *domain.User {
	if v, ok := c.Get(ctxKeyUser); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}
