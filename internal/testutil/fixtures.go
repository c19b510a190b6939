// Package testutil provides fixtures and helpers shared by the storefront
// tests.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/ieraasyl/Storefront/internal/models"
)

// TestUserSession returns a session logged in at loginTime.
func TestUserSession(loginTime time.Time) *models.UserSession {
	return &models.UserSession{
		SubjectID:      "109876543210987654321",
		Name:           "Jane Doe",
		Email:          "jane@example.com",
		PictureURL:     "https://lh3.googleusercontent.com/a/jane",
		LoginTimestamp: loginTime,
	}
}

// UnsignedToken builds a JWT-shaped credential with the given payload and
// a dummy signature. Google ID tokens are decoded without verification, so
// this is enough to drive the callback handlers.
func UnsignedToken(payload map[string]interface{}) string {
	header, _ := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT", "kid": "test"})
	body, _ := json.Marshal(payload)

	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(body) + "." + enc.EncodeToString([]byte("signature"))
}

// GoogleClaims returns a typical ID token payload.
func GoogleClaims() map[string]interface{} {
	return map[string]interface{}{
		"iss":     "https://accounts.google.com",
		"aud":     "test-client-id",
		"sub":     "109876543210987654321",
		"email":   "jane@example.com",
		"name":    "Jane Doe",
		"picture": "https://lh3.googleusercontent.com/a/jane",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
}

// UserAgents provides common user agent strings for testing
var UserAgents = struct {
	Chrome       string
	Safari       string
	MobileSafari string
	Unknown      string
}{
	Chrome:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	Safari:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	MobileSafari: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	Unknown:      "",
}
