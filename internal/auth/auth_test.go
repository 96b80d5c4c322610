package auth

import (
	"context"
	"testing"
	"time"

	apperrors "tourbook/internal/errors"
	"tourbook/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	in := Identity{UserID: "user-1", Role: models.RoleAdmin, Email: "a@example.com", Name: "Ann"}

	raw, err := NewToken(testSecret, in, time.Hour)
	require.NoError(t, err)

	out, err := ParseToken(testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseToken_Rejects(t *testing.T) {
	raw, err := NewToken(testSecret, Identity{UserID: "u"}, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other-secret", raw)
	assert.Error(t, err)

	expired, err := NewToken(testSecret, Identity{UserID: "u"}, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, expired)
	assert.Error(t, err)

	_, err = ParseToken(testSecret, "not-a-token")
	assert.Error(t, err)
}

func TestParseToken_RejectsNoneAlg(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u", "role": "admin"})
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, raw)
	assert.Error(t, err)
}

func TestParseToken_UnknownRoleIsCustomer(t *testing.T) {
	raw, err := NewToken(testSecret, Identity{UserID: "u", Role: "superuser"}, time.Hour)
	require.NoError(t, err)

	id, err := ParseToken(testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, id.Role)
}

func TestRequireAdmin(t *testing.T) {
	_, err := RequireAdmin(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	ctx := ContextWithIdentity(context.Background(), Identity{UserID: "c", Role: models.RoleCustomer})
	_, err = RequireAdmin(ctx)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	ctx = ContextWithIdentity(context.Background(), Identity{UserID: "a", Role: models.RoleAdmin})
	id, err := RequireAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", id.UserID)
}
