package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ieraasyl/Storefront/internal/middleware"
	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/ieraasyl/Storefront/internal/render"
	"github.com/ieraasyl/Storefront/internal/services"
	"github.com/ieraasyl/Storefront/pkg/utils"
	"github.com/rs/zerolog/log"
)

// Cookie names.
const (
	SessionCookie    = "session_id"
	PageCookie       = "sf_page"
	OAuthStateCookie = "oauth_state"

	// csrfCookie is set by Google Identity Services and echoed as a form
	// field of the same name on the redirect-mode callback.
	csrfCookie = "g_csrf_token"
)

// Messages shown on the login page.
const (
	MsgDecodeFailed = "Failed to process authentication"
	MsgSaveFailed   = "Failed to save user data"
	MsgAuthFailed   = "Authentication failed"
)

// SessionManager stores the signed-in user per browser session.
type SessionManager interface {
	Save(ctx context.Context, sessionID string, user *models.UserSession) error
	Current(ctx context.Context, sessionID string) (*models.UserSession, error)
	Logout(ctx context.Context, sessionID string) error
	Now() time.Time
}

// OAuthProvider runs the authorization code flow and yields an ID token.
type OAuthProvider interface {
	Enabled() bool
	GetAuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// AuthHandler serves the login page and both Google sign-in flows.
//
// The Identity Services button posts a signed ID token ("credential") to
// GoogleCallback. When a client secret is configured the classic redirect
// flow (GoogleLogin, OAuthCallback) is offered as well; both end in the
// same decode-and-save step.
type AuthHandler struct {
	sessions     SessionManager
	oauth        OAuthProvider
	clientID     string
	loginURI     string
	sessionTTL   time.Duration
	isProduction bool
}

// NewAuthHandler creates the auth handler. baseURL is the public origin the
// Identity Services button posts back to.
func NewAuthHandler(
	sessions SessionManager,
	oauth OAuthProvider,
	clientID string,
	baseURL string,
	sessionTTL time.Duration,
	isProduction bool,
) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		oauth:        oauth,
		clientID:     clientID,
		loginURI:     strings.TrimRight(baseURL, "/") + "/auth/google/callback",
		sessionTTL:   sessionTTL,
		isProduction: isProduction,
	}
}

// LoginPage renders the sign-in page. Signed-in users are sent home.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if user := currentUser(w, r, h.sessions); user != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, http.StatusOK, "")
}

// GoogleCallback receives the Identity Services credential (redirect mode).
// The g_csrf_token cookie must match the form field of the same name.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Warn().Err(err).Msg("Malformed sign-in callback")
		middleware.IncrementAuthAttempts("gis", "invalid_credential")
		h.renderLogin(w, http.StatusBadRequest, MsgDecodeFailed)
		return
	}

	cookie, err := r.Cookie(csrfCookie)
	token := r.PostFormValue(csrfCookie)
	if err != nil || cookie.Value == "" || token != cookie.Value {
		log.Warn().
			Str("request_id", utils.GetRequestID(r.Context())).
			Str("ip", utils.ExtractClientIP(r)).
			Msg("Sign-in CSRF token mismatch")
		middleware.IncrementAuthAttempts("gis", "csrf_mismatch")
		h.renderLogin(w, http.StatusBadRequest, MsgDecodeFailed)
		return
	}

	h.completeLogin(w, r, "gis", r.PostFormValue("credential"))
}

// GoogleLogin starts the authorization code flow.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.oauth.Enabled() {
		render.WriteError(w, http.StatusNotFound, "Google account sign-in is not available.")
		return
	}

	state := services.GenerateState()
	utils.SetCookieWithMaxAge(w, OAuthStateCookie, state, 600, h.isProduction)

	http.Redirect(w, r, h.oauth.GetAuthURL(state), http.StatusTemporaryRedirect)
}

// OAuthCallback finishes the authorization code flow started by GoogleLogin.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(OAuthStateCookie)
	if err != nil || r.URL.Query().Get("state") != stateCookie.Value {
		log.Warn().Msg("OAuth state mismatch")
		middleware.IncrementAuthAttempts("oauth", "invalid_state")
		h.renderLogin(w, http.StatusBadRequest, MsgAuthFailed)
		return
	}
	utils.ClearCookie(w, OAuthStateCookie)

	if reason := r.URL.Query().Get("error"); reason != "" {
		log.Info().Str("reason", reason).Msg("Google sign-in declined")
		middleware.IncrementAuthAttempts("oauth", "declined")
		h.renderLogin(w, http.StatusUnauthorized, MsgAuthFailed)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.IncrementAuthAttempts("oauth", "invalid_state")
		h.renderLogin(w, http.StatusBadRequest, MsgAuthFailed)
		return
	}

	idToken, err := h.oauth.ExchangeCode(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("Failed to exchange authorization code")
		middleware.IncrementAuthAttempts("oauth", "exchange_failed")
		h.renderLogin(w, http.StatusUnauthorized, MsgAuthFailed)
		return
	}

	h.completeLogin(w, r, "oauth", idToken)
}

// completeLogin decodes credential, stores the user under a fresh session id
// and redirects home. Nothing is stored if either step fails.
func (h *AuthHandler) completeLogin(w http.ResponseWriter, r *http.Request, method, credential string) {
	now := h.sessions.Now()

	user, err := services.DecodeCredential(credential, now)
	if err != nil {
		log.Warn().Err(err).Str("method", method).Msg("Failed to decode credential")
		middleware.IncrementAuthAttempts(method, "invalid_credential")
		h.renderLogin(w, http.StatusUnauthorized, MsgDecodeFailed)
		return
	}

	sessionID := uuid.New().String()
	if err := h.sessions.Save(r.Context(), sessionID, user); err != nil {
		log.Error().Err(err).Str("subject", user.SubjectID).Msg("Failed to save user session")
		middleware.IncrementAuthAttempts(method, "save_failed")
		h.renderLogin(w, http.StatusInternalServerError, MsgSaveFailed)
		return
	}

	// The previous browser session, if any, is replaced rather than reused.
	if old, err := r.Cookie(SessionCookie); err == nil && old.Value != "" {
		if err := h.sessions.Logout(r.Context(), old.Value); err != nil {
			log.Warn().Err(err).Msg("Failed to drop previous session")
		}
	}

	utils.SetCookie(w, SessionCookie, sessionID, now.Add(h.sessionTTL), h.isProduction)

	ip := utils.ExtractClientIP(r)
	log.Info().
		Str("subject", user.SubjectID).
		Str("method", method).
		Str("device", services.ExtractDeviceInfo(r.UserAgent())).
		Str("ip", ip).
		Bool("private_network", utils.IsPrivateIP(ip)).
		Msg("User signed in")
	middleware.IncrementAuthAttempts(method, "success")

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout removes the stored user and returns to the home page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := h.sessions.Logout(r.Context(), cookie.Value); err != nil {
			log.Warn().Err(err).Msg("Failed to remove user session")
		}
	}

	utils.ClearCookie(w, SessionCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Account shows the signed-in user. Anonymous visitors go to /login.
func (h *AuthHandler) Account(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.sessions)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	render.WritePage(w, http.StatusOK, render.PageAccount, render.View{User: user})
}

// Me returns the signed-in user as JSON.
//
//	{"user": {"sub": "...", "name": "...", ...}}
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.sessions)
	if user == nil {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"user": user,
	})
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, status int, message string) {
	render.WritePage(w, status, render.PageLogin, render.View{
		Error:          message,
		GoogleClientID: h.clientID,
		LoginURI:       h.loginURI,
		OAuthEnabled:   h.oauth.Enabled(),
	})
}

// UserResolver looks up the user of a browser session.
type UserResolver interface {
	Current(ctx context.Context, sessionID string) (*models.UserSession, error)
}

// currentUser resolves the session cookie. Expired sessions have already
// been removed from the store; their cookie is cleared here. Store errors
// are logged and treated as anonymous.
func currentUser(w http.ResponseWriter, r *http.Request, sessions UserResolver) *models.UserSession {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}

	user, err := sessions.Current(r.Context(), cookie.Value)
	switch {
	case err == nil:
		return user
	case errors.Is(err, services.ErrSessionExpired), errors.Is(err, services.ErrSessionNotFound):
		utils.ClearCookie(w, SessionCookie)
	default:
		log.Error().
			Err(err).
			Str("request_id", utils.GetRequestID(r.Context())).
			Msg("Failed to load user session")
	}
	return nil
}
