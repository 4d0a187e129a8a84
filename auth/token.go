package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenExpired = errors.New("session token expired")

// FromToken builds a Session from a bearer token issued by the backend, filling any
// identifier the caller left blank from the token claims. The signature is not checked:
// the backend is the verifier, the terminal only reads its own scope out of the token.
func FromToken(token string, base Session) (Session, error) {
	base.Token = token

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("invalid session token: %w", err)
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(time.Now()) {
		return Session{}, ErrTokenExpired
	}

	fill := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v, ok := claims[k].(string); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	fill(&base.TenantID, "tenant_id", "tenantId")
	fill(&base.SubsidiaryID, "subsidiary_id", "subsidiaryId")
	fill(&base.UserID, "user_id", "_id", "sub")
	fill(&base.Role, "role")
	fill(&base.Currency, "currency")

	return base, nil
}

// IssueToken signs claims for a session with HS256. Used by the CLI and tests to mint
// tokens shaped like the backend's.
func IssueToken(s Session, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"tenant_id":     s.TenantID,
		"subsidiary_id": s.SubsidiaryID,
		"user_id":       s.UserID,
		"role":          s.Role,
		"exp":           time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
