package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"tally/internal/auth"
	"tally/internal/core"
)

// sessionStore keeps bearer tokens in memory. Tokens expire after the
// configured TTL; a restart logs everyone out.
type sessionStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]session
}

type session struct {
	user      core.User
	expiresAt time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, tokens: make(map[string]session)}
}

func (ss *sessionStore) issue(u core.User) string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	token := hex.EncodeToString(buf)

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.tokens[token] = session{user: u, expiresAt: time.Now().Add(ss.ttl)}
	return token
}

func (ss *sessionStore) resolve(token string) (core.User, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	sess, ok := ss.tokens[token]
	if !ok {
		return core.User{}, false
	}
	if time.Now().After(sess.expiresAt) {
		delete(ss.tokens, token)
		return core.User{}, false
	}
	return sess.user, true
}

// requireRole resolves the bearer token and gates the handler on the
// role ladder. Requests without a valid token get 401, valid users
// below the required role get 403.
func (s *Server) requireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, ok := s.sessions.resolve(strings.TrimSpace(token))
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if err := auth.RequireRole(user, role); err != nil {
			slog.WarnContext(r.Context(), "Role check failed",
				"username", user.Username, "role", user.Role, "required", role)
			writeError(w, http.StatusForbidden, "insufficient role")
			return
		}
		next(w, r)
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.authSvc.Register(r.Context(), req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "username already taken")
		case errors.Is(err, auth.ErrUnknownRole), errors.Is(err, core.ErrEmptyName):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			slog.ErrorContext(r.Context(), "Register failed", "username", req.Username, "error", err)
			writeError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.authSvc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.ErrorContext(r.Context(), "Login failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	token := s.sessions.issue(user)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"username": user.Username,
		"role":     user.Role,
	})
}
