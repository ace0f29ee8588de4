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

package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/rackradar/pkg/core/auth"
	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/metrics"
	"github.com/carverauto/rackradar/pkg/models"
)

const (
	defaultListenAddr        = ":8090"
	defaultGRPCListenAddr    = ":50052"
	defaultScanTimeout       = 30 * time.Second
	defaultMaxConcurrentRPCs = 64
	defaultHeartbeatTimeout  = 90 * time.Second
)

var (
	errControllerID       = errors.New("controllers: system_id is required")
	errDuplicateID        = errors.New("controllers: duplicate system_id")
	errNegativeConcurrent = errors.New("max_concurrent_rpcs must not be negative")
)

// ControllerSeed is a rack controller known before it first heartbeats.
type ControllerSeed struct {
	SystemID string `json:"system_id"`
	Hostname string `json:"hostname"`
	Address  string `json:"address"`
}

// Config configures the core service.
type Config struct {
	ListenAddr        string                   `json:"listen_addr"`
	GRPCListenAddr    string                   `json:"grpc_listen_addr"`
	ScanTimeout       models.Duration          `json:"scan_timeout"`
	MaxConcurrentRPCs int                      `json:"max_concurrent_rpcs"`
	HeartbeatTimeout  models.Duration          `json:"heartbeat_timeout"`
	Controllers       []ControllerSeed         `json:"controllers,omitempty"`
	Database          *models.PostgresDatabase `json:"database,omitempty"`
	NATS              *models.NATSConfig       `json:"nats,omitempty"`
	Auth              *auth.Config             `json:"auth,omitempty"`
	CORS              models.CORSConfig        `json:"cors"`
	Security          *models.SecurityConfig   `json:"security,omitempty"`
	Logging           *logger.Config           `json:"logging,omitempty"`
	Metrics           *metrics.Config          `json:"metrics,omitempty"`
}

// Validate fills defaults and checks the configuration.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.GRPCListenAddr == "" {
		c.GRPCListenAddr = defaultGRPCListenAddr
	}

	if c.ScanTimeout <= 0 {
		c.ScanTimeout = models.Duration(defaultScanTimeout)
	}

	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = models.Duration(defaultHeartbeatTimeout)
	}

	var errs []error

	switch {
	case c.MaxConcurrentRPCs < 0:
		errs = append(errs, errNegativeConcurrent)
	case c.MaxConcurrentRPCs == 0:
		c.MaxConcurrentRPCs = defaultMaxConcurrentRPCs
	}

	seen := make(map[string]struct{}, len(c.Controllers))

	for i, seed := range c.Controllers {
		if seed.SystemID == "" {
			errs = append(errs, fmt.Errorf("%w (entry %d)", errControllerID, i))
			continue
		}

		if _, dup := seen[seed.SystemID]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", errDuplicateID, seed.SystemID))
		}

		seen[seed.SystemID] = struct{}{}
	}

	if c.Auth == nil {
		c.Auth = &auth.Config{}
	}

	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
