package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineseat/ticketing/internal/model"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, sub, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

func runIdentity(t *testing.T, req *http.Request) (model.Actor, *httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var actor model.Actor
	h := Identity(testSecret)(func(c echo.Context) error {
		actor, _ = GetActor(c)
		return c.NoContent(http.StatusOK)
	})
	err := h(c)
	return actor, rec, err
}

func TestIdentityResolvesUserFromToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "42", ""))

	actor, rec, err := runIdentity(t, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user:42", actor.ID)
	assert.False(t, actor.Guest)
	assert.False(t, actor.Staff)
}

func TestIdentityMarksStaff(t *testing.T) {
	for _, role := range []string{"STAFF", "ADMIN"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "1", role))

		actor, _, err := runIdentity(t, req)
		require.NoError(t, err)
		assert.True(t, actor.Staff, "role %s must mark staff", role)
	}
}

func TestIdentityRejectsBadToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")

	_, rec, err := runIdentity(t, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentityMintsGuestSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	actor, rec, err := runIdentity(t, req)
	require.NoError(t, err)
	assert.True(t, actor.Guest)
	require.True(t, strings.HasPrefix(actor.ID, "guest:"))

	// The minted session comes back as a cookie and is honored on the
	// next request, giving the guest a stable holder id.
	cookies := rec.Result().Cookies()
	var session *http.Cookie
	for _, ck := range cookies {
		if ck.Name == guestSessionCookie {
			session = ck
		}
	}
	require.NotNil(t, session)
	assert.Equal(t, "guest:"+session.Value, actor.ID)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(session)
	actor2, _, err := runIdentity(t, req2)
	require.NoError(t, err)
	assert.Equal(t, actor.ID, actor2.ID)
}
