package services

import (
	"testing"
	"time"

	"github.com/ieraasyl/Storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCredential(t *testing.T) {
	now := time.Date(2024, 1, 20, 14, 45, 0, 0, time.UTC)

	t.Run("maps the payload to a session", func(t *testing.T) {
		user, err := DecodeCredential(testutil.UnsignedToken(testutil.GoogleClaims()), now)
		require.NoError(t, err)

		assert.Equal(t, "109876543210987654321", user.SubjectID)
		assert.Equal(t, "Jane Doe", user.Name)
		assert.Equal(t, "jane@example.com", user.Email)
		assert.Equal(t, "https://lh3.googleusercontent.com/a/jane", user.PictureURL)
		assert.Equal(t, now, user.LoginTimestamp)
	})

	t.Run("missing name still decodes", func(t *testing.T) {
		claims := testutil.GoogleClaims()
		delete(claims, "name")

		user, err := DecodeCredential(testutil.UnsignedToken(claims), now)
		require.NoError(t, err)
		assert.Empty(t, user.Name)
		assert.Equal(t, "jane@example.com", user.Email)
	})

	t.Run("expired tokens are not rejected", func(t *testing.T) {
		claims := testutil.GoogleClaims()
		claims["exp"] = now.Add(-48 * time.Hour).Unix()

		_, err := DecodeCredential(testutil.UnsignedToken(claims), now)
		assert.NoError(t, err)
	})

	t.Run("missing subject is rejected", func(t *testing.T) {
		claims := testutil.GoogleClaims()
		delete(claims, "sub")

		_, err := DecodeCredential(testutil.UnsignedToken(claims), now)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("malformed credentials are rejected", func(t *testing.T) {
		for _, credential := range []string{
			"",
			"not-a-jwt",
			"a.b",
			"eyJhbGciOiJSUzI1NiJ9.!!!.sig",
			"eyJhbGciOiJSUzI1NiJ9.bm90LWpzb24.sig",
		} {
			_, err := DecodeCredential(credential, now)
			assert.ErrorIs(t, err, ErrInvalidCredential, "credential %q", credential)
		}
	})
}
