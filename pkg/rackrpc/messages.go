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

// Package rackrpc defines the RPC surface between the core and rack
// controllers and the client side used by the scan dispatcher.
package rackrpc

import "github.com/carverauto/rackradar/pkg/models"

const (
	// RackControllerService is served by every rack controller.
	RackControllerService = "rackradar.v1.RackController"
	// ControllerRegistryService is served by the core.
	ControllerRegistryService = "rackradar.v1.ControllerRegistry"
)

// ScanAllNetworksRequest asks a controller to scan every network it is
// attached to.
type ScanAllNetworksRequest struct {
	// Force scans networks that were scanned recently.
	Force bool `json:"force,omitempty"`
	// Slow trades speed for accuracy.
	Slow    bool     `json:"slow,omitempty"`
	Threads int      `json:"threads,omitempty"`
	CIDRs   []string `json:"cidrs,omitempty"`
}

// Name implements dispatch.Command.
func (*ScanAllNetworksRequest) Name() string {
	return "scan_all_networks"
}

type ScanAllNetworksResponse struct {
	Started bool     `json:"started"`
	CIDRs   []string `json:"cidrs,omitempty"`
}

// HeartbeatRequest is sent periodically by each controller.
type HeartbeatRequest struct {
	SystemID   string                       `json:"system_id"`
	Hostname   string                       `json:"hostname"`
	Address    string                       `json:"address"`
	Interfaces []models.ConfiguredInterface `json:"interfaces,omitempty"`
}

type HeartbeatResponse struct {
	Accepted bool `json:"accepted"`
}
