package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localmart/realtime/pkg/apperr"
	"github.com/localmart/realtime/pkg/auth"
)

const ctxClaims = "claims"

func (s *server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := s.authn.ValidateToken(auth.BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

func currentUser(c *gin.Context) *auth.Claims {
	return c.MustGet(ctxClaims).(*auth.Claims)
}

// fail maps a coded error to its HTTP status. Transient collaborator
// failures become 500s without leaking internals.
func (s *server) fail(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	msg := err.Error()
	if code == apperr.Transient {
		msg = "temporarily unavailable"
	}
	c.JSON(apperr.HTTPStatus(code), gin.H{"code": string(code), "error": msg})
}
