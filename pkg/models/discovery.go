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

// Discovery is a single observed (interface, IP, MAC) identity.
type Discovery struct {
	DiscoveryID string       `json:"discovery_id"`
	Interface   InterfaceRef `json:"interface"`
	IP          string       `json:"ip"`
	MACAddress  string       `json:"mac_address"`
	Hostname    string       `json:"hostname,omitempty"`
	FirstSeen   time.Time    `json:"first_seen"`
	LastSeen    time.Time    `json:"last_seen"`
}

// ObservationKind distinguishes the passive sources a controller reports.
type ObservationKind string

const (
	ObservationNeighbour ObservationKind = "neighbour"
	ObservationMDNS      ObservationKind = "mdns"
)

// NeighbourObservation is an IP/MAC pairing seen on an interface.
type NeighbourObservation struct {
	Interface  InterfaceRef `json:"interface"`
	IP         string       `json:"ip"`
	MACAddress string       `json:"mac_address"`
	ObservedAt time.Time    `json:"observed_at"`
}

// MDNSObservation is a hostname announced for an IP on an interface.
type MDNSObservation struct {
	Interface  InterfaceRef `json:"interface"`
	IP         string       `json:"ip"`
	Hostname   string       `json:"hostname"`
	ObservedAt time.Time    `json:"observed_at"`
}

// Observation is the wire envelope controllers publish on the observation
// subject. Only the fields relevant to Kind are populated.
type Observation struct {
	Kind       ObservationKind `json:"kind"`
	Interface  InterfaceRef    `json:"interface"`
	IP         string          `json:"ip"`
	MACAddress string          `json:"mac_address,omitempty"`
	Hostname   string          `json:"hostname,omitempty"`
	ObservedAt time.Time       `json:"observed_at"`
}

// Neighbour converts the envelope into a neighbour observation.
func (o *Observation) Neighbour() NeighbourObservation {
	return NeighbourObservation{
		Interface:  o.Interface,
		IP:         o.IP,
		MACAddress: o.MACAddress,
		ObservedAt: o.ObservedAt,
	}
}

// MDNS converts the envelope into an mDNS observation.
func (o *Observation) MDNS() MDNSObservation {
	return MDNSObservation{
		Interface:  o.Interface,
		IP:         o.IP,
		Hostname:   o.Hostname,
		ObservedAt: o.ObservedAt,
	}
}
