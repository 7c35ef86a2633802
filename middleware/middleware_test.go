package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/globals"
)

func signedToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(globals.JwtSecret)
	require.NoError(t, err)
	return signed
}

func contextUser(r *http.Request) (string, bool) {
	v, ok := r.Context().Value(globals.UserIDKey).(string)
	return v, ok
}

func TestAuthenticateValidToken(t *testing.T) {
	var gotUser string
	handler := Authenticate(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gotUser, _ = contextUser(r)
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, "u1"))
	w := httptest.NewRecorder()
	handler(w, r, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", gotUser)
}

func TestAuthenticateMissingToken(t *testing.T) {
	handler := Authenticate(func(_ http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		t.Fatal("handler reached without token")
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateMalformedToken(t *testing.T) {
	handler := Authenticate(func(_ http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		t.Fatal("handler reached with bad token")
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	handler(w, r, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthWithoutToken(t *testing.T) {
	reached := false
	handler := OptionalAuth(func(_ http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		reached = true
		_, ok := contextUser(r)
		assert.False(t, ok)
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOptionalAuthWithToken(t *testing.T) {
	var gotUser string
	handler := OptionalAuth(func(_ http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gotUser, _ = contextUser(r)
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, "u2"))
	handler(httptest.NewRecorder(), r, nil)
	assert.Equal(t, "u2", gotUser)
}
