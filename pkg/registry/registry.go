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

// Package registry tracks the rack controllers known to the core and their
// reachability.
package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
)

var (
	// ErrUnknownController is returned when an operation names a system id
	// that was never registered.
	ErrUnknownController = errors.New("unknown controller")
	errEmptySystemID     = errors.New("system id is required")
)

// ControllerRegistry is the authoritative in-process list of controllers.
// Controllers are never removed; they only flip between reachable and
// unreachable.
type ControllerRegistry struct {
	mu          sync.RWMutex
	controllers map[string]*models.Controller
	logger      logger.Logger
}

// New creates an empty registry.
func New(log logger.Logger) *ControllerRegistry {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &ControllerRegistry{
		controllers: make(map[string]*models.Controller),
		logger:      log,
	}
}

// Register adds a controller or refreshes its hostname and address. The
// reachability of an already-known controller is left untouched.
func (r *ControllerRegistry) Register(c models.Controller) error {
	id := strings.TrimSpace(c.SystemID)
	if id == "" {
		return errEmptySystemID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.controllers[id]; ok {
		if c.Hostname != "" {
			existing.Hostname = c.Hostname
		}

		if c.Address != "" {
			existing.Address = c.Address
		}

		return nil
	}

	c.SystemID = id
	r.controllers[id] = &c

	r.logger.Info().
		Str("controller_id", id).
		Str("address", c.Address).
		Bool("reachable", c.Reachable).
		Msg("Registered rack controller")

	return nil
}

// Get returns a copy of the controller with the given system id.
func (r *ControllerRegistry) Get(id string) (models.Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.controllers[id]
	if !ok {
		return models.Controller{}, false
	}

	return *c, true
}

// ListAll returns every registered controller ordered by system id.
func (r *ControllerRegistry) ListAll(_ context.Context) ([]models.Controller, error) {
	return r.list(func(*models.Controller) bool { return true }), nil
}

// ListReachable returns the reachable controllers ordered by system id.
func (r *ControllerRegistry) ListReachable(_ context.Context) ([]models.Controller, error) {
	return r.list(func(c *models.Controller) bool { return c.Reachable }), nil
}

func (r *ControllerRegistry) list(keep func(*models.Controller) bool) []models.Controller {
	r.mu.RLock()

	out := make([]models.Controller, 0, len(r.controllers))

	for _, c := range r.controllers {
		if keep(c) {
			out = append(out, *c)
		}
	}

	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SystemID < out[j].SystemID })

	return out
}

// IsReachable reports whether the controller is known and reachable.
func (r *ControllerRegistry) IsReachable(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.controllers[id]

	return ok && c.Reachable
}

// MarkReachable records that the controller can be contacted.
func (r *ControllerRegistry) MarkReachable(id string) error {
	return r.setReachable(id, true)
}

// MarkUnreachable records that the controller cannot be contacted.
func (r *ControllerRegistry) MarkUnreachable(id string) error {
	return r.setReachable(id, false)
}

func (r *ControllerRegistry) setReachable(id string, reachable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.controllers[id]
	if !ok {
		return ErrUnknownController
	}

	if c.Reachable != reachable {
		r.logger.Info().
			Str("controller_id", id).
			Bool("reachable", reachable).
			Msg("Controller reachability changed")
	}

	c.Reachable = reachable

	return nil
}

// Heartbeat records a liveness signal from a controller, registering it on
// first contact, and marks it reachable.
func (r *ControllerRegistry) Heartbeat(id, hostname, address string, at time.Time) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errEmptySystemID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.controllers[id]
	if !ok {
		c = &models.Controller{SystemID: id}
		r.controllers[id] = c

		r.logger.Info().Str("controller_id", id).Msg("Registered rack controller from heartbeat")
	}

	if hostname != "" {
		c.Hostname = hostname
	}

	if address != "" {
		c.Address = address
	}

	if !c.Reachable {
		r.logger.Info().Str("controller_id", id).Msg("Controller reachable")
	}

	c.Reachable = true

	if at.After(c.LastHeartbeat) {
		c.LastHeartbeat = at
	}

	return nil
}

// ReapStale marks reachable controllers whose last heartbeat is older than
// timeout as unreachable and returns their ids. Controllers that have never
// sent a heartbeat are left alone.
func (r *ControllerRegistry) ReapStale(now time.Time, timeout time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []string

	for id, c := range r.controllers {
		if !c.Reachable || c.LastHeartbeat.IsZero() {
			continue
		}

		if now.Sub(c.LastHeartbeat) > timeout {
			c.Reachable = false
			reaped = append(reaped, id)

			r.logger.Warn().
				Str("controller_id", id).
				Time("last_heartbeat", c.LastHeartbeat).
				Msg("Controller heartbeat stale, marking unreachable")
		}
	}

	sort.Strings(reaped)

	return reaped
}
