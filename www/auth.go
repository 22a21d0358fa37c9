package www

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"binwatch/store"
)

const sessionName = "binwatch-session"

func newSessionStore(secret string) *sessions.CookieStore {
	if secret == "" {
		secret = "binwatch-default-secret-change-me"
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options.HttpOnly = true
	s.Options.Secure = false // runs on plain HTTP (factory LAN)
	s.Options.SameSite = http.SameSiteLaxMode
	return s
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (h *Handlers) isAuthenticated(r *http.Request) bool {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return false
	}
	auth, ok := session.Values["authenticated"].(bool)
	return ok && auth
}

func (h *Handlers) getUsername(r *http.Request) string {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	username, _ := session.Values["username"].(string)
	return username
}

// requireAuth guards mutating configuration routes.
func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.isAuthenticated(r) {
			h.jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) ensureDefaultAdmin(ctx context.Context, db store.Adapter) {
	exists, err := store.AdminUserExists(ctx, db)
	if err != nil || exists {
		return
	}
	hash, err := hashPassword("admin")
	if err != nil {
		return
	}
	store.CreateAdminUser(ctx, db, "admin", hash)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	user, err := store.GetAdminUser(r.Context(), h.engine.DB(), req.Username)
	if err != nil || !checkPassword(user.PasswordHash, req.Password) {
		h.jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = user.Username
	if err := session.Save(r, w); err != nil {
		h.jsonError(w, "session save failed", http.StatusInternalServerError)
		return
	}
	h.jsonMessage(w, "logged in", map[string]string{"username": user.Username})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	delete(session.Values, "username")
	session.Save(r, w)
	h.jsonMessage(w, "logged out", nil)
}

func (h *Handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	if !h.isAuthenticated(r) {
		h.jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	h.jsonOK(w, map[string]string{"username": h.getUsername(r)})
}
