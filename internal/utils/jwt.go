package utils // package utils provides helpers for token issuing and password hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// SignedToken represents a signed HS256 JWT along with its expiry. The Token
// field contains the serialized JWT string and Exp records the UTC expiration
// time embedded in the claims. Access tokens travel in the Authorization
// header; refresh tokens travel in an http-only cookie.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// ErrInvalidToken is returned by ParseUserID for any token that fails
// verification: bad signature, wrong signing method, expired or malformed.
// Callers never learn which factor failed.
var ErrInvalidToken = errors.New("invalid token")

// NewAccessToken builds and signs a short-lived HS256 JWT for a user. The
// TTL is given in minutes. Claims are the subject (sub), expiration (exp)
// and issued-at (iat). Access and refresh tokens are signed with distinct
// secrets so one can never stand in for the other.
func NewAccessToken(secret, userID string, ttlMin int) (SignedToken, error) {
	return signToken(secret, userID, time.Duration(ttlMin)*time.Minute)
}

// NewRefreshToken builds and signs a long-lived HS256 JWT for a user. The
// TTL is given in hours. The raw token string is stored verbatim on the
// session row so a rotated or revoked token can never be replayed.
func NewRefreshToken(secret, userID string, ttlHours int) (SignedToken, error) {
	return signToken(secret, userID, time.Duration(ttlHours)*time.Hour)
}

func signToken(secret, userID string, ttl time.Duration) (SignedToken, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// ParseUserID verifies a token against the given secret and returns the
// subject claim (the user ID). Verification is pure and local: no store
// access, so authentication failures short-circuit before any I/O. Any
// failure collapses into ErrInvalidToken.
func ParseUserID(raw, secret string) (string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC; an attacker must not
		// be able to pick the verification algorithm.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
