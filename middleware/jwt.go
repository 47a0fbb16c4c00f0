package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer = "raidsim"
	clockLeeway = 5 * time.Second
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload. Every account owns exactly one profile, so the
// profile id travels in the token and handlers never look it up.
type Claims struct {
	AccountID int64  `json:"account_id"`
	ProfileID string `json:"profile_id"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 JWT for the account and its profile. Each
// token gets a unique id so two logins in the same second never collide on
// the session key.
func GenerateToken(accountID int64, profileID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		AccountID: accountID,
		ProfileID: profileID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   profileID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a JWT string and returns the claims. Tokens must be
// HS256, issued by this service, carry an expiry and name a profile.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ProfileID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
