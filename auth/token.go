package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/thejerf/abtime"
)

// DefaultSessionTTL is the validity window of a session token
const DefaultSessionTTL = 3 * 24 * time.Hour

// ErrInvalidToken wraps every reason a session token is rejected:
// bad signature, malformed input, expiry or a missing subject.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of a session token
type Claims struct {
	AccountID string `json:"_id"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens bound to an account
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  abtime.AbstractTime
}

// NewTokenService creates a token service. A nil clock uses real time and a
// non-positive ttl uses DefaultSessionTTL.
func NewTokenService(secret string, ttl time.Duration, clock abtime.AbstractTime) *TokenService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clock,
	}
}

// TTL returns the validity window of issued tokens
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for accountID valid for TTL from now
func (s *TokenService) Issue(accountID string) (string, error) {
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the bound account id
func (s *TokenService) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.AccountID == "" {
		return "", ErrInvalidToken
	}
	return claims.AccountID, nil
}
