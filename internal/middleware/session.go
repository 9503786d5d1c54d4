package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"todolist/internal/models"
	"todolist/internal/services"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const principalKey = "principal"

// LoginURL is where RequireAuth sends anonymous visitors.
const LoginURL = "/signin"

type SessionCookie struct {
	Name   string
	Secure bool
}

// LoadSession resolves the session cookie into a Principal stored on the
// request context. A cookie that no longer maps to a live session is
// cleared and the request continues anonymously.
func LoadSession(db *gorm.DB, sessions services.SessionService, cookie SessionCookie, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookie.Name)
		if err != nil || token == "" {
			c.Next()
			return
		}

		principal, err := sessions.Resolve(db.WithContext(c.Request.Context()), token)
		if err != nil {
			if errors.Is(err, services.ErrSessionNotFound) {
				ClearSessionCookie(c, cookie)
			} else {
				logger.Error("failed to resolve session", "path", c.Request.URL.Path, "err", err)
			}
			c.Next()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireAuth redirects anonymous requests to the login page, carrying the
// requested path in the next parameter.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalFrom(c).IsAnonymous() {
			target := LoginURL + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the signed-in user, or the anonymous Principal.
func PrincipalFrom(c *gin.Context) models.Principal {
	value, exists := c.Get(principalKey)
	if !exists {
		return models.Principal{}
	}
	principal, ok := value.(models.Principal)
	if !ok {
		return models.Principal{}
	}
	return principal
}

func SetSessionCookie(c *gin.Context, cookie SessionCookie, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, token, maxAge, "/", "", cookie.Secure, true)
}

func ClearSessionCookie(c *gin.Context, cookie SessionCookie) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, "", -1, "/", "", cookie.Secure, true)
}
