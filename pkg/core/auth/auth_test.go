/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/rackradar/pkg/models"
)

const testSecret = "test-secret"

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()

	a, err := NewAuthenticator(&Config{
		Enabled:   true,
		JWTSecret: testSecret,
		APIKeys: []APIKey{
			{Name: "ops", Key: "ops-key", Roles: []string{"admin"}},
			{Name: "viewer", Key: "viewer-key", Roles: []string{"viewer"}},
		},
	})
	require.NoError(t, err)

	return a
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultAdminRole, cfg.AdminRole)
	assert.Equal(t, models.Duration(defaultJWTExpiration), cfg.JWTExpiration)

	err := (&Config{Enabled: true}).Validate()
	require.ErrorIs(t, err, errSecretRequired)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testSecret, "alice", []string{"admin"}, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, []string{"admin"}, claims.Roles)

	_, err = ParseToken("other-secret", token)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken(testSecret, "alice", nil, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, expired)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{Roles: []string{"admin"}})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseToken(testSecret, signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate(t *testing.T) {
	a := newTestAuthenticator(t)

	token, err := a.IssueToken("bob", []string{"viewer"})
	require.NoError(t, err)

	p, err := a.Authenticate("Bearer "+token, "")
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Subject)
	assert.False(t, p.HasRole("admin"))

	p, err = a.Authenticate("", "ops-key")
	require.NoError(t, err)
	assert.Equal(t, "apikey:ops", p.Subject)
	assert.True(t, p.HasRole("admin"))

	_, err = a.Authenticate("", "nope")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Authenticate("", "")
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = a.Authenticate("Bearer garbage", "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateDisabled(t *testing.T) {
	a, err := NewAuthenticator(nil)
	require.NoError(t, err)

	p, err := a.Authenticate("", "")
	require.NoError(t, err)
	assert.True(t, p.HasRole(DefaultAdminRole))
	assert.True(t, a.IsAdmin(WithPrincipal(context.Background(), p)))
}

func serve(h http.Handler, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/discovery/", http.NoBody)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	return rr
}

func TestMiddlewareAndRequireAdmin(t *testing.T) {
	a := newTestAuthenticator(t)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := a.Middleware()(a.RequireAdmin(ok))

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{name: "no credentials", key: "", status: http.StatusUnauthorized},
		{name: "bad key", key: "wrong", status: http.StatusUnauthorized},
		{name: "viewer", key: "viewer-key", status: http.StatusForbidden},
		{name: "admin", key: "ops-key", status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, tt.key)
			assert.Equal(t, tt.status, rr.Code)

			if tt.status >= http.StatusBadRequest {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
				assert.Equal(t, tt.status, body.Status)
			}
		})
	}
}

func TestRequireAdminWithoutMiddleware(t *testing.T) {
	a := newTestAuthenticator(t)

	h := a.RequireAdmin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	assert.Equal(t, http.StatusUnauthorized, serve(h, "ops-key").Code)
}
