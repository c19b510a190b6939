package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/ieraasyl/Storefront/pkg/cache"
	"github.com/mileusna/useragent"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSessionNotFound is returned when no user is stored for a session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned (after removal) for sessions older than
	// the maximum age.
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore is the key-value store holding session flashes.
type SessionStore interface {
	Get(ctx context.Context, key string, target interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Count(ctx context.Context, pattern string) (int, error)
}

// SessionService manages the user session flash: one UserSession per browser
// session id, always written whole, dropped once it is older than maxAge.
type SessionService struct {
	store  SessionStore
	maxAge time.Duration
	now    func() time.Time
}

// NewSessionService creates a session service. Stored keys also get a Redis
// TTL of twice maxAge so abandoned sessions disappear on their own.
//
// Example:
//
//	sessionSvc := services.NewSessionService(cache.NewCache(redisDB.Client()), 24*time.Hour)
func NewSessionService(store SessionStore, maxAge time.Duration) *SessionService {
	return &SessionService{
		store:  store,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Now returns the service clock.
func (s *SessionService) Now() time.Time {
	return s.now()
}

// Save overwrites the session flash of sessionID with user.
func (s *SessionService) Save(ctx context.Context, sessionID string, user *models.UserSession) error {
	if sessionID == "" {
		return fmt.Errorf("failed to save session: empty session id")
	}

	if err := s.store.Set(ctx, cache.UserDataKey(sessionID), user, 2*s.maxAge); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	log.Info().
		Str("session_id", sessionID).
		Str("subject", user.SubjectID).
		Msg("User session saved")
	return nil
}

// Current returns the user of sessionID. A session older than the maximum
// age is deleted and reported as ErrSessionExpired; an unreadable entry is
// deleted and reported as ErrSessionNotFound.
func (s *SessionService) Current(ctx context.Context, sessionID string) (*models.UserSession, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	key := cache.UserDataKey(sessionID)

	var user models.UserSession
	if err := s.store.Get(ctx, key, &user); err != nil {
		switch {
		case errors.Is(err, cache.ErrCacheMiss):
			return nil, ErrSessionNotFound
		case errors.Is(err, cache.ErrCorrupt):
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Dropping unreadable user session")
			s.remove(ctx, key)
			return nil, ErrSessionNotFound
		default:
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}

	if age := user.Age(s.now()); age > s.maxAge {
		log.Info().
			Str("session_id", sessionID).
			Dur("age", age).
			Msg("User session expired, logging out")
		s.remove(ctx, key)
		return nil, ErrSessionExpired
	}

	return &user, nil
}

// Logout removes the session flash of sessionID.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.store.Delete(ctx, cache.UserDataKey(sessionID)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	log.Info().Str("session_id", sessionID).Msg("User session removed")
	return nil
}

// ActiveCount returns the number of stored session flashes.
func (s *SessionService) ActiveCount(ctx context.Context) (int, error) {
	return s.store.Count(ctx, cache.UserDataPattern())
}

func (s *SessionService) remove(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to remove user session")
	}
}

// ExtractDeviceInfo turns a User-Agent header into a short description such
// as "Chrome 120.0.0.0 · Windows 10 · Desktop" for the login audit log.
func ExtractDeviceInfo(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgent)

	var parts []string
	if ua.Name != "" {
		parts = append(parts, strings.TrimSpace(ua.Name+" "+ua.Version))
	}
	if ua.OS != "" {
		parts = append(parts, strings.TrimSpace(ua.OS+" "+ua.OSVersion))
	}

	switch {
	case ua.Mobile:
		parts = append(parts, "Mobile")
	case ua.Tablet:
		parts = append(parts, "Tablet")
	case ua.Desktop:
		parts = append(parts, "Desktop")
	}

	if len(parts) == 0 {
		if len(userAgent) > 100 {
			return userAgent[:100] + "..."
		}
		return userAgent
	}

	return strings.Join(parts, " · ")
}
