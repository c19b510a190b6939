package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ieraasyl/Storefront/internal/models"
)

// ErrInvalidCredential is returned when an identity token cannot be decoded.
var ErrInvalidCredential = errors.New("invalid identity credential")

// IdentityClaims is the payload of a Google ID token.
type IdentityClaims struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// DecodeCredential reads the payload of a Google ID token and maps it to a
// UserSession logged in at now.
//
// SECURITY: the signature, issuer, audience and expiry are NOT checked. The
// result is only good for display and must not drive trust decisions.
// Verifying against Google's JWKS belongs here before this is used for
// anything beyond the session flash.
//
// A missing name is accepted; a missing subject is not.
func DecodeCredential(credential string, now time.Time) (*models.UserSession, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrInvalidCredential)
	}

	var claims IdentityClaims
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}

	return &models.UserSession{
		SubjectID:      claims.Subject,
		Name:           claims.Name,
		Email:          claims.Email,
		PictureURL:     claims.Picture,
		LoginTimestamp: now.UTC(),
	}, nil
}
