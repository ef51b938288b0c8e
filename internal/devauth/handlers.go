package devauth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/mbank/internal/client/models"
	"github.com/dmitrijs2005/mbank/internal/logging"
)

const maxBody = 16 << 10

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// refreshRequest accepts both body shapes; Server.refreshToken picks the one
// the configured shape allows.
type refreshRequest struct {
	Snake string `json:"refresh_token"`
	Camel string `json:"refreshToken"`
}

type refreshInput struct {
	RefreshToken string `validate:"required,max=4096"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type Server struct {
	cfg    *Config
	users  *Users
	issuer *Issuer
	log    logging.Logger
}

func NewServer(cfg *Config, users *Users, issuer *Issuer, log logging.Logger) *Server {
	return &Server{cfg: cfg, users: users, issuer: issuer, log: log}
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if err := ValidateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	user, err := s.users.Authenticate(req.Username, req.Password)
	if err != nil {
		s.log.Info(r.Context(), "login rejected", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}

	s.issue(w, r, user)
	s.log.Info(r.Context(), "login", "user_id", user.ID)
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	in := refreshInput{RefreshToken: s.refreshToken(req)}
	if err := ValidateRequest(in); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	claims, err := s.issuer.Parse(in.RefreshToken, typeRefresh)
	if err != nil {
		s.log.Info(r.Context(), "refresh rejected", "reason", err.Error())
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid or expired refresh token")
		return
	}
	user, ok := s.users.ByID(claims.Subject)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "unknown subject")
		return
	}

	if err := s.issuer.Consume(claims); err != nil {
		s.log.Info(r.Context(), "refresh rejected", "reason", err.Error())
		writeError(w, http.StatusUnauthorized, "invalid_token", "refresh token already used")
		return
	}
	s.issue(w, r, user)
	s.log.Debug(r.Context(), "refresh", "user_id", user.ID)
}

func (s *Server) refreshToken(req refreshRequest) string {
	switch s.cfg.RefreshShape {
	case ShapeSnake:
		return req.Snake
	case ShapeCamel:
		return req.Camel
	}
	if req.Snake != "" {
		return req.Snake
	}
	return req.Camel
}

// Logout revokes the refresh token when one is supplied and always succeeds.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.ContentLength != 0 {
		if !decode(w, r, &req) {
			return
		}
	}
	if req.RefreshToken != "" {
		if claims, err := s.issuer.Parse(req.RefreshToken, typeRefresh); err == nil {
			s.issuer.Revoke(claims)
			s.log.Info(r.Context(), "logout", "user_id", claims.Subject)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	writeJSON(w, http.StatusOK, models.Profile{UserID: claims.Subject, Username: claims.Username})
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, user *User) {
	pair, err := s.issuer.Issue(user.ID, user.Username)
	if err != nil {
		s.log.Error(r.Context(), "issue tokens", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "")
		return
	}
	writeJSON(w, http.StatusOK, models.TokenResponse{
		Access:  models.TokenBody{Token: pair.AccessToken},
		Refresh: models.TokenBody{Token: pair.RefreshToken},
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}
