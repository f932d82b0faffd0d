package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/pr-workflow/internal/application/service"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
)

const actorKey = "actor"

// SessionConfig holds the signed session cookie settings
type SessionConfig struct {
	SecretKey    string
	CookieName   string
	CookieSecure bool
	// IdleTimeout is how long a session lives without a request
	IdleTimeout time.Duration
}

// sessionClaims is the JWT payload stored in the session cookie.
type sessionClaims struct {
	UserID     int64  `json:"user_id"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies session cookies. Every authenticated
// request re-issues the cookie, so the idle timeout slides.
type SessionManager struct {
	config SessionConfig
	users  service.UserService
	now    func() time.Time
}

// NewSessionManager creates a session manager backed by users
func NewSessionManager(config SessionConfig, users service.UserService) *SessionManager {
	if config.CookieName == "" {
		config.CookieName = "pr_session"
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 30 * time.Minute
	}
	return &SessionManager{config: config, users: users, now: time.Now}
}

// Issue signs a fresh token for user and sets it as the session cookie
func (m *SessionManager) Issue(c *gin.Context, user *entity.User) error {
	now := m.now()
	claims := &sessionClaims{
		UserID:     user.ID,
		Role:       string(user.Role),
		Department: user.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.IdleTimeout)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.SecretKey))
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}
	m.setCookie(c, signed, int(m.config.IdleTimeout.Seconds()))
	return nil
}

// Clear expires the session cookie
func (m *SessionManager) Clear(c *gin.Context) {
	m.setCookie(c, "", -1)
}

func (m *SessionManager) setCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	})
}

func (m *SessionManager) parse(raw string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.config.SecretKey), nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}

// RequireAuth validates the session cookie, reloads the account so a
// deactivated user is locked out at once, and stores the caller as an
// entity.Actor on the context. Missing or invalid sessions get 401.
func (m *SessionManager) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(m.config.CookieName)
		if err != nil || raw == "" {
			abortUnauthorized(c, "authentication required")
			return
		}

		claims, err := m.parse(raw)
		if err != nil {
			m.Clear(c)
			abortUnauthorized(c, "session expired, please sign in again")
			return
		}

		user, err := m.users.Get(c.Request.Context(), claims.UserID)
		if err != nil || !user.Active {
			m.Clear(c)
			abortUnauthorized(c, "account is not active")
			return
		}

		if err := m.Issue(c, user); err != nil {
			fail(c, err)
			c.Abort()
			return
		}

		c.Set(actorKey, entity.Actor{
			UserID:     user.ID,
			Username:   user.Username,
			FullName:   user.FullName,
			Role:       user.Role,
			Department: user.Department,
		})
		c.Next()
	}
}

// actorFrom returns the caller stored by RequireAuth
func actorFrom(c *gin.Context) entity.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(entity.Actor)
	return actor
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Success: false, Error: msg})
}
