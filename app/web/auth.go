package web

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	log "github.com/go-pkgz/lgr"
	"golang.org/x/crypto/bcrypt"
)

const (
	authCookie = "shopinv-auth"
	authUser   = "shopinv"
)

// handleLoginForm displays the login form
func (s *Server) handleLoginForm(w http.ResponseWriter, _ *http.Request) {
	s.renderLogin(w, http.StatusOK, "")
}

// handleLogin processes the login form submission
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	password := r.FormValue("password")
	if password == "" {
		s.renderLogin(w, http.StatusUnauthorized, "Password is required")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		log.Printf("[WARN] failed login attempt from %s", r.RemoteAddr)
		s.renderLogin(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    s.authToken(),
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60, // 7 days
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout clears the auth cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, errorMsg string) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	s.render(w, status, "login", "login", struct{ Error string }{Error: errorMsg})
}

// authMiddleware checks for auth cookie or falls back to basic auth
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// skip auth for login page and static resources
		if r.URL.Path == "/login" || strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		if cookie, err := r.Cookie(authCookie); err == nil && s.validAuthToken(cookie.Value) {
			next.ServeHTTP(w, r)
			return
		}

		// basic auth for API clients
		if username, password, ok := r.BasicAuth(); ok && username == authUser {
			if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		if r.Header.Get("Accept") == "" || strings.Contains(r.Header.Get("Accept"), "text/html") {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="shopinv"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

// authToken is derived from the password hash, so changing the password invalidates all cookies
func (s *Server) authToken() string {
	h := sha256.Sum256([]byte(s.passwordHash + "shopinv-auth-token"))
	return hex.EncodeToString(h[:])
}

func (s *Server) validAuthToken(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken())) == 1
}
