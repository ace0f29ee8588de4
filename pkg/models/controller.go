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

package models

import "time"

// Controller is a rack controller known to the core. Controllers are never
// removed once registered; they only flip between reachable and unreachable.
type Controller struct {
	SystemID      string    `json:"system_id"`
	Hostname      string    `json:"hostname"`
	Address       string    `json:"address"`
	Reachable     bool      `json:"reachable"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// InterfaceRef identifies the network interface on a controller that made an
// observation. It is a lookup key, not an owning reference.
type InterfaceRef struct {
	SystemID string `json:"system_id"`
	Name     string `json:"interface_name"`
	ID       int    `json:"interface_id"`
}

// ConfiguredInterface is an interface as configured in the fleet inventory,
// along with the addresses (CIDR notation) assigned to it.
type ConfiguredInterface struct {
	Name       string   `json:"name"`
	ID         int      `json:"id"`
	MACAddress string   `json:"mac_address"`
	Addresses  []string `json:"addresses,omitempty"`
}
