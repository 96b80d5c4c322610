package auth

import (
	"errors"
	"fmt"
	"time"

	"tourbook/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload issued by the identity provider
type Claims struct {
	Role  models.Role `json:"role"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	jwt.RegisteredClaims
}

// NewToken signs an HS256 token for the identity. Used by the seed tool and tests;
// production tokens come from the identity provider.
func NewToken(secret string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role:  id.Role,
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the signature and expiry of raw and returns the identity it carries
func ParseToken(secret, raw string) (Identity, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	if !tok.Valid {
		return Identity{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("token has no subject")
	}

	role := claims.Role
	if role != models.RoleAdmin {
		role = models.RoleCustomer
	}

	return Identity{
		UserID: claims.Subject,
		Role:   role,
		Email:  claims.Email,
		Name:   claims.Name,
	}, nil
}
