// Package middleware contains reusable HTTP middleware: holder identity
// resolution and the Redis token-bucket rate limiter.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cineseat/ticketing/internal/model"
)

const (
	actorContextKey    = "actor"
	guestSessionCookie = "guest_session"
)

// Identity resolves the acting holder for every request.  Authenticated
// callers present a Bearer token issued by the external auth service; the
// subject claim becomes holder "user:<sub>" and a STAFF/ADMIN role claim
// marks staff.  Callers without a token get a stable anonymous session:
// a guest_session cookie minted on first contact, holder "guest:<token>".
// Token issuing, registration and login live outside this service.
func Identity(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				raw := strings.TrimPrefix(auth, "Bearer ")
				actor, err := actorFromToken(raw, secret)
				if err != nil {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
				c.Set(actorContextKey, actor)
				return next(c)
			}
			c.Set(actorContextKey, guestActor(c))
			return next(c)
		}
	}
}

func actorFromToken(raw, secret string) (model.Actor, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return model.Actor{}, echo.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return model.Actor{}, echo.ErrUnauthorized
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return model.Actor{}, echo.ErrUnauthorized
	}
	role, _ := claims["role"].(string)
	return model.Actor{
		ID:    "user:" + sub,
		Staff: role == "STAFF" || role == "ADMIN",
	}, nil
}

func guestActor(c echo.Context) model.Actor {
	if cookie, err := c.Cookie(guestSessionCookie); err == nil && cookie.Value != "" {
		return model.Actor{ID: "guest:" + cookie.Value, Guest: true}
	}
	token := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     guestSessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	return model.Actor{ID: "guest:" + token, Guest: true}
}

// GetActor returns the actor resolved by Identity.  The boolean is false
// when the middleware did not run for this route.
func GetActor(c echo.Context) (model.Actor, bool) {
	actor, ok := c.Get(actorContextKey).(model.Actor)
	return actor, ok
}
