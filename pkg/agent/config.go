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

package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
)

const (
	defaultListenAddr        = ":50061"
	defaultHeartbeatInterval = 30 * time.Second
	defaultProbeTimeout      = 500 * time.Millisecond
	defaultThreads           = 64
	defaultARPPath           = "/proc/net/arp"
	defaultMaxHostsPerCIDR   = 4096
)

var (
	errSystemIDRequired    = errors.New("system_id is required")
	errCoreAddressRequired = errors.New("core_address is required")
	errInterfaceName       = errors.New("interface name is required")
)

// Config configures a rack agent.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	// AdvertiseAddr is the address the core dials back on. Defaults to
	// ListenAddr.
	AdvertiseAddr     string                       `json:"advertise_addr"`
	SystemID          string                       `json:"system_id"`
	Hostname          string                       `json:"hostname"`
	CoreAddress       string                       `json:"core_address"`
	HeartbeatInterval models.Duration              `json:"heartbeat_interval"`
	Interfaces        []models.ConfiguredInterface `json:"interfaces"`
	Scan              ScanConfig                   `json:"scan"`
	NATS              *models.NATSConfig           `json:"nats,omitempty"`
	Security          *models.SecurityConfig       `json:"security,omitempty"`
	Logging           *logger.Config               `json:"logging,omitempty"`
}

// ScanConfig tunes the neighbour sweep.
type ScanConfig struct {
	ProbePorts      []int           `json:"probe_ports"`
	ProbeTimeout    models.Duration `json:"probe_timeout"`
	Threads         int             `json:"threads"`
	ARPPath         string          `json:"arp_path"`
	MaxHostsPerCIDR int             `json:"max_hosts_per_cidr"`
}

// Validate fills defaults and checks required fields.
func (c *Config) Validate() error {
	var errs []error

	if c.SystemID == "" {
		errs = append(errs, errSystemIDRequired)
	}

	if c.CoreAddress == "" {
		errs = append(errs, errCoreAddressRequired)
	}

	for i, iface := range c.Interfaces {
		if iface.Name == "" {
			errs = append(errs, fmt.Errorf("interfaces[%d]: %w", i, errInterfaceName))
		}
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.AdvertiseAddr == "" {
		c.AdvertiseAddr = c.ListenAddr
	}

	if c.Hostname == "" {
		c.Hostname = c.SystemID
	}

	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = models.Duration(defaultHeartbeatInterval)
	}

	c.Scan.applyDefaults()

	return errors.Join(errs...)
}

func (s *ScanConfig) applyDefaults() {
	if len(s.ProbePorts) == 0 {
		s.ProbePorts = []int{22, 80, 443}
	}

	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = models.Duration(defaultProbeTimeout)
	}

	if s.Threads <= 0 {
		s.Threads = defaultThreads
	}

	if s.ARPPath == "" {
		s.ARPPath = defaultARPPath
	}

	if s.MaxHostsPerCIDR <= 0 {
		s.MaxHostsPerCIDR = defaultMaxHostsPerCIDR
	}
}
