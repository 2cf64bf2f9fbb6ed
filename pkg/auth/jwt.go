package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/localmart/realtime/pkg/apperr"
)

// Claims is the identity carried by a bearer token: who the user is, their
// display name for presence events, and their product role.
type Claims struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator signs and validates bearer tokens. The identity service that
// issues real tokens shares the same secret.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

func New(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl}
}

// GenerateToken issues a token for the given identity.
func (a *Authenticator) GenerateToken(userID, userName, role string) (string, error) {
	claims := &Claims{
		UserID:   userID,
		UserName: userName,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and verifies a bearer token. Any failure (missing,
// malformed, expired, bad signature) comes back as Unauthenticated.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, apperr.E(apperr.Unauthenticated, "no token provided")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthenticated, err, "invalid token")
	}
	if !token.Valid || claims.UserID == "" {
		return nil, apperr.E(apperr.Unauthenticated, "invalid token")
	}
	return claims, nil
}

// BearerToken strips the optional "Bearer " prefix from an Authorization
// header value.
func BearerToken(header string) string {
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return header
}
