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

// Package auth decides who is calling the core API and whether they hold
// administrative privilege.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/carverauto/rackradar/pkg/models"
)

var (
	// ErrUnauthenticated is returned when a request carries no usable credentials.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidToken is returned for bearer tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden is returned when the caller lacks the admin role.
	ErrForbidden = errors.New("administrative privilege required")

	errSecretRequired = errors.New("auth: jwt_secret or api_keys required when enabled")
)

const (
	DefaultAdminRole     = "admin"
	defaultJWTExpiration = 24 * time.Hour
	anonymousSubject     = "anonymous"
)

// APIKey maps a static key to a set of roles.
type APIKey struct {
	Name  string   `json:"name"`
	Key   string   `json:"key"`
	Roles []string `json:"roles"`
}

// Config controls API authentication. When Enabled is false every caller is
// treated as an administrator.
type Config struct {
	Enabled       bool            `json:"enabled"`
	JWTSecret     string          `json:"jwt_secret"`
	JWTExpiration models.Duration `json:"jwt_expiration"`
	AdminRole     string          `json:"admin_role"`
	APIKeys       []APIKey        `json:"api_keys,omitempty"`
}

func (c *Config) Validate() error {
	if c.AdminRole == "" {
		c.AdminRole = DefaultAdminRole
	}

	if c.JWTExpiration <= 0 {
		c.JWTExpiration = models.Duration(defaultJWTExpiration)
	}

	if c.Enabled && c.JWTSecret == "" && len(c.APIKeys) == 0 {
		return errSecretRequired
	}

	return nil
}

// Principal is an authenticated caller.
type Principal struct {
	Subject string
	Roles   []string
}

func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}

	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}

	return false
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller attached by Middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// Authenticator resolves request credentials into principals.
type Authenticator struct {
	cfg Config
}

func NewAuthenticator(cfg *Config) (*Authenticator, error) {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &Authenticator{cfg: c}, nil
}

func (a *Authenticator) Enabled() bool {
	return a.cfg.Enabled
}

func (a *Authenticator) AdminRole() string {
	return a.cfg.AdminRole
}

// IsAdmin reports whether the caller on ctx holds the admin role.
func (a *Authenticator) IsAdmin(ctx context.Context) bool {
	p, ok := PrincipalFromContext(ctx)

	return ok && p.HasRole(a.cfg.AdminRole)
}

// Authenticate checks a bearer token or API key. With auth disabled it
// returns an anonymous administrator.
func (a *Authenticator) Authenticate(authorization, apiKey string) (*Principal, error) {
	if !a.cfg.Enabled {
		return &Principal{Subject: anonymousSubject, Roles: []string{a.cfg.AdminRole}}, nil
	}

	if token, ok := strings.CutPrefix(authorization, "Bearer "); ok && a.cfg.JWTSecret != "" {
		claims, err := ParseToken(a.cfg.JWTSecret, strings.TrimSpace(token))
		if err != nil {
			return nil, err
		}

		return &Principal{Subject: claims.Subject, Roles: claims.Roles}, nil
	}

	if apiKey != "" {
		for i := range a.cfg.APIKeys {
			k := &a.cfg.APIKeys[i]
			if subtle.ConstantTimeCompare([]byte(k.Key), []byte(apiKey)) == 1 {
				return &Principal{Subject: "apikey:" + k.Name, Roles: k.Roles}, nil
			}
		}

		return nil, ErrInvalidToken
	}

	return nil, ErrUnauthenticated
}

// IssueToken signs a token for subject using the configured secret and expiry.
func (a *Authenticator) IssueToken(subject string, roles []string) (string, error) {
	return GenerateToken(a.cfg.JWTSecret, subject, roles, time.Duration(a.cfg.JWTExpiration))
}
