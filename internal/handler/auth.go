package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/family-finance/internal/auth"
	"github.com/sakif/family-finance/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler covers sign-up, sign-in (password and GitHub), sign-out and the
// signed-in user's own profile.
//
// A successful sign-in answers with the session and also sets it as an
// HttpOnly cookie, so browsers never handle the token while API clients can
// still send it as a Bearer header.
type AuthHandler struct {
	sessions     *service.SessionManager
	github       *auth.GitHubProvider // nil when GitHub sign-in is not configured
	cookieSecure bool
	logger       *slog.Logger
}

func NewAuthHandler(
	sessions *service.SessionManager,
	github *auth.GitHubProvider,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		github:       github,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type sessionResponse struct {
	*service.Session
	Token string `json:"token"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateMeRequest struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

// HandleSignUp creates a password account.
//
// HTTP: POST /api/auth/signup
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.sessions.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}

	h.startSession(w, http.StatusCreated, sess)
}

// HandleSignIn checks email and password.
//
// HTTP: POST /api/auth/signin
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}

	h.startSession(w, http.StatusOK, sess)
}

// HandleSignOut clears the session cookie.
//
// HTTP: POST /api/auth/signout
//
// Tokens are stateless: the token stays valid until it expires, but without
// the cookie the browser no longer sends it.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if sess, err := h.sessions.Restore(r.Context(), token); err == nil {
			h.sessions.SignOut(r.Context(), sess)
		}
	}

	auth.ClearSessionCookie(w, h.cookieSecure)
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /api/auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived cookie and into the authorization
// URL; the callback only proceeds when both match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow and signs the user in.
//
// HTTP: GET /api/auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	sess, err := h.sessions.SignInGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	auth.SetSessionCookie(w, sess.Token, sess.ExpiresAt, h.cookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleMe returns the session of the caller.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Restore(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleUpdateMe edits the caller's name and avatar.
//
// HTTP: PUT /api/me
// REQUEST BODY: {"name": "Ana", "avatar": "https://..."}; either may be omitted.
func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.sessions.UpdateProfile(r.Context(), userID, req.Name, req.Avatar)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, status int, sess *service.Session) {
	auth.SetSessionCookie(w, sess.Token, sess.ExpiresAt, h.cookieSecure)
	writeJSON(w, status, sessionResponse{Session: sess, Token: sess.Token})
}
