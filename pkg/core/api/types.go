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

package api

import (
	"context"
	"time"

	"github.com/carverauto/rackradar/pkg/dispatch"
	"github.com/carverauto/rackradar/pkg/models"
)

// Scanner triggers fleet-wide scans.
type Scanner interface {
	Scan(ctx context.Context, cmd dispatch.Command) (*models.ScanReport, error)
}

// Controllers exposes the controller registry.
type Controllers interface {
	ListAll(ctx context.Context) ([]models.Controller, error)
	ListReachable(ctx context.Context) ([]models.Controller, error)
	Get(systemID string) (models.Controller, bool)
}

// Observer describes the controller interface that made an observation.
type Observer struct {
	SystemID      string `json:"system_id"`
	Hostname      string `json:"hostname"`
	InterfaceName string `json:"interface_name"`
	InterfaceID   int    `json:"interface_id"`
}

// DiscoveryResponse is the serialized form of a discovery.
type DiscoveryResponse struct {
	DiscoveryID string    `json:"discovery_id"`
	IP          string    `json:"ip"`
	MACAddress  string    `json:"mac_address"`
	Hostname    string    `json:"hostname"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Observer    Observer  `json:"observer"`
	ResourceURI string    `json:"resource_uri"`
}

type ControllerResponse struct {
	SystemID      string     `json:"system_id"`
	Hostname      string     `json:"hostname"`
	Address       string     `json:"address"`
	Reachable     bool       `json:"reachable"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	ResourceURI   string     `json:"resource_uri"`
}
