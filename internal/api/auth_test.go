package api

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festivalops/planstore/internal/auth"
)

func newSignedRouter(t *testing.T) (http.Handler, string) {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	private, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, private.Set(jwk.KeyIDKey, "api-test-key"))

	public, err := private.PublicKey()
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))

	token, err := jwt.NewBuilder().
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, private))
	require.NoError(t, err)

	return newTestRouter(t, auth.NewStaticVerifier(set)), string(signed)
}

func TestWriteRoutesRequireToken(t *testing.T) {
	router, token := newSignedRouter(t)

	body, err := json.Marshal(testPlanDoc())
	require.NoError(t, err)

	t.Run("unauthenticated write rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/v1/plans/c-101", bytes.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("authenticated write accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/v1/plans/c-101", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("read routes stay open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/plans/c-101", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bulk create requires token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/plans:bulk", bytes.NewReader([]byte("{}")))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("details write requires token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/v1/plans/c-101/details", bytes.NewReader([]byte("{}")))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
