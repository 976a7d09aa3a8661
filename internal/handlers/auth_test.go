package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenSubject(t *testing.T) {
	secret := []byte("s3cret")

	token, err := IssueToken(12, string(secret), time.Minute)
	require.NoError(t, err)
	userID, err := parseTokenSubject(token, secret)
	require.NoError(t, err)
	assert.Equal(t, 12, userID)

	_, err = parseTokenSubject(token, []byte("other"))
	assert.Error(t, err)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "apiserver",
		Subject:   "12",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(secret)
	require.NoError(t, err)
	_, err = parseTokenSubject(foreign, secret)
	assert.Error(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  tokenIssuer,
		Subject: "12",
	}).SignedString(secret)
	require.NoError(t, err)
	_, err = parseTokenSubject(noExpiry, secret)
	assert.Error(t, err)

	_, err = IssueToken(0, string(secret), time.Minute)
	assert.Error(t, err)
}

func TestOptionalAuth(t *testing.T) {
	var seen int
	handler := OptionalAuth("k")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = userIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, seen)

	token, err := IssueToken(3, "k", 0)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 3, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
