package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/ctxutil"
	"github.com/edubridge/edubridge-backend/internal/directory"
	"github.com/edubridge/edubridge-backend/internal/models"
)

const stateCookie = "edubridge_oauth_state"

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// federatedResponse: либо сессия, либо данные для регистрации.
type federatedResponse struct {
	Token   string             `json:"token,omitempty"`
	User    *models.User       `json:"user,omitempty"`
	NewUser bool               `json:"newUser"`
	Prefill *directory.Prefill `json:"prefill,omitempty"`
}

type registerRequest struct {
	directory.Registration
	directory.Credential
}

type loginRequest struct {
	Email string `json:"email"`
	directory.Credential
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, status int, u models.User) {
	token, _, err := s.sessions.Issue(r.Context(), u)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: u})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	u, err := s.dir.Register(r.Context(), req.Registration, req.Credential)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.startSession(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	u, err := s.dir.Login(r.Context(), req.Email, req.Credential)
	if errors.Is(err, apperr.ErrNotFound) {
		// неизвестный email выглядит так же, как неверный пароль
		err = apperr.ErrInvalidCredential
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.startSession(w, r, http.StatusOK, u)
}

func (s *Server) handleGoogleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "idToken is required")
		return
	}
	res, err := s.dir.FederatedLogin(r.Context(), req.IDToken)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if res.NewUserRequired() {
		writeJSON(w, http.StatusOK, federatedResponse{NewUser: true, Prefill: res.NeedsRegistration})
		return
	}
	token, _, err := s.sessions.Issue(r.Context(), *res.Existing)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, federatedResponse{Token: token, User: res.Existing})
}

func (s *Server) handleGoogleRedirect(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusNotFound, "google_disabled", "Google sign-in is not configured")
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oauth.AuthURL(state), http.StatusFound)
}

// handleGoogleCallback завершает code flow и уводит браузер обратно в приложение:
// {base}/dashboard#token=... или {base}/register#email=...&idToken=...
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusNotFound, "google_disabled", "Google sign-in is not configured")
		return
	}
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "invalid_state", "sign-in request expired, try again")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/google", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing_code", "authorization code is missing")
		return
	}
	rawID, err := s.oauth.Exchange(r.Context(), code)
	if err != nil {
		s.log.Warn("google code exchange failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "google_exchange_failed", "could not complete Google sign-in")
		return
	}
	res, err := s.dir.FederatedLogin(r.Context(), rawID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	frag := url.Values{}
	target := s.baseURL + "/dashboard"
	if res.NewUserRequired() {
		target = s.baseURL + "/register"
		p := res.NeedsRegistration
		frag.Set("email", p.Email)
		frag.Set("name", p.Name)
		frag.Set("profilePic", p.ProfilePic)
		frag.Set("idToken", rawID)
	} else {
		token, _, err := s.sessions.Issue(r.Context(), *res.Existing)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		frag.Set("token", token)
	}
	http.Redirect(w, r, target+"#"+frag.Encode(), http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sid, _ := ctxutil.SessionID(r.Context())
	if err := s.sessions.Revoke(r.Context(), sid); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.rt.Stop(sid)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe отдаёт закэшированный профиль сессии.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token", "authorization required")
		return
	}
	writeJSON(w, http.StatusOK, sess.User)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.dir.Profile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
