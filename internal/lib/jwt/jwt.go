package jwt

import (
	"errors"
	"fmt"
	"time"

	"identity_service/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenExpired = jwt.ErrTokenExpired

// Policy holds the signing parameters every issued bearer token is stamped
// with. Resource servers verify issuer, audience, lifetime and signature with
// the same values.
type Policy struct {
	Secret   string
	Issuer   string
	Audience string
	TokenTTL time.Duration
}

type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// NewToken signs a bearer token for the user. The token is self-contained:
// verification needs no store lookup.
func (p Policy) NewToken(user models.User) (string, error) {
	const op = "jwt.NewToken"

	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    p.Issuer,
			Audience:  jwt.ClaimStrings{p.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.TokenTTL)),
		},
		Name: user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(p.Secret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Parse verifies signature, issuer, audience and lifetime. An expired but
// otherwise well-formed token is reported as ErrTokenExpired so the boundary
// can tell the client to run the refresh flow instead of logging in again.
func (p Policy) Parse(tokenStr string) (*Claims, error) {
	const op = "jwt.Parse"

	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method %v", op, t.Header["alg"])
		}
		return []byte(p.Secret), nil
	},
		jwt.WithIssuer(p.Issuer),
		jwt.WithAudience(p.Audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}

	return claims, nil
}
