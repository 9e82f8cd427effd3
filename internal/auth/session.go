package auth

import (
	"net/http"

	"github.com/gorilla/securecookie"
)

const identityKey = "user_id"

// SessionManager reads and clears the browser session of the login flow
type SessionManager interface {
	// Identity returns the authenticated user id carried by the session, if any
	Identity(r *http.Request) (string, bool)
	HasIdentity(r *http.Request) bool
	SetIdentity(w http.ResponseWriter, r *http.Request, userID string) error
	// ClearIdentity logs the user out while keeping the rest of the session
	ClearIdentity(w http.ResponseWriter, r *http.Request)
	// Destroy expires the session cookie entirely
	Destroy(w http.ResponseWriter, r *http.Request)
}

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Name     string
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
	MaxAge   int    // seconds
}

// CookieSession keeps the session in a signed, optionally encrypted cookie
type CookieSession struct {
	codec  *securecookie.SecureCookie
	config CookieConfig
}

// NewCookieSession creates a CookieSession. blockKey may be nil to sign without
// encrypting.
func NewCookieSession(hashKey, blockKey []byte, config CookieConfig) *CookieSession {
	if config.Name == "" {
		config.Name = "amgate_session"
	}
	if config.MaxAge == 0 {
		config.MaxAge = 86400
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(config.MaxAge)

	return &CookieSession{codec: codec, config: config}
}

func (s *CookieSession) load(r *http.Request) map[string]string {
	values := map[string]string{}
	cookie, err := r.Cookie(s.config.Name)
	if err != nil {
		return values
	}
	if err := s.codec.Decode(s.config.Name, cookie.Value, &values); err != nil {
		// tampered or expired cookies count as an empty session
		return map[string]string{}
	}
	return values
}

func (s *CookieSession) save(w http.ResponseWriter, values map[string]string) error {
	encoded, err := s.codec.Encode(s.config.Name, values)
	if err != nil {
		return err
	}
	http.SetCookie(w, s.cookie(encoded, s.config.MaxAge))
	return nil
}

func (s *CookieSession) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.config.Name,
		Value:    value,
		Path:     "/",
		Domain:   s.config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: parseSameSite(s.config.SameSite),
	}
}

func (s *CookieSession) Identity(r *http.Request) (string, bool) {
	userID := s.load(r)[identityKey]
	return userID, userID != ""
}

func (s *CookieSession) HasIdentity(r *http.Request) bool {
	_, ok := s.Identity(r)
	return ok
}

func (s *CookieSession) SetIdentity(w http.ResponseWriter, r *http.Request, userID string) error {
	values := s.load(r)
	values[identityKey] = userID
	return s.save(w, values)
}

func (s *CookieSession) ClearIdentity(w http.ResponseWriter, r *http.Request) {
	values := s.load(r)
	delete(values, identityKey)
	// encoding a plain string map cannot fail
	_ = s.save(w, values)
}

func (s *CookieSession) Destroy(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.cookie("", -1))
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
