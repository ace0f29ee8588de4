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
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
	"github.com/carverauto/rackradar/pkg/rackrpc"
)

// rescanInterval is how long a network is skipped after a scan unless the
// request forces it.
const rescanInterval = 10 * time.Minute

var errInvalidCIDR = errors.New("invalid cidr")

// Sweeper provokes neighbour resolution for a set of hosts.
type Sweeper interface {
	Sweep(ctx context.Context, hosts []netip.Addr, concurrency int) int
}

// Scanner runs one network scan on the controller.
type Scanner interface {
	// Networks resolves the networks a request covers. Errors are request
	// errors, reported before any scan starts. An empty result means there is
	// nothing to do.
	Networks(req *rackrpc.ScanAllNetworksRequest) ([]netip.Prefix, error)
	Scan(ctx context.Context, req *rackrpc.ScanAllNetworksRequest, networks []netip.Prefix) error
}

// NetworkScanner sweeps attached IPv4 networks and reports the resulting
// neighbour table entries as observations.
type NetworkScanner struct {
	systemID  string
	ifaces    []models.ConfiguredInterface
	sweeper   Sweeper
	table     NeighbourTable
	publisher Publisher
	maxHosts  int
	now       func() time.Time
	logger    logger.Logger

	mu          sync.Mutex
	lastScanned map[netip.Prefix]time.Time
}

var _ Scanner = (*NetworkScanner)(nil)

func NewNetworkScanner(
	systemID string,
	ifaces []models.ConfiguredInterface,
	sweeper Sweeper,
	table NeighbourTable,
	publisher Publisher,
	maxHosts int,
	log logger.Logger,
) *NetworkScanner {
	if maxHosts <= 0 {
		maxHosts = defaultMaxHostsPerCIDR
	}

	return &NetworkScanner{
		systemID:    systemID,
		ifaces:      ifaces,
		sweeper:     sweeper,
		table:       table,
		publisher:   publisher,
		maxHosts:    maxHosts,
		now:         time.Now,
		logger:      log,
		lastScanned: make(map[netip.Prefix]time.Time),
	}
}

// Networks returns the requested CIDRs, or every IPv4 network configured on
// the controller's interfaces. Recently scanned networks are dropped unless
// the request forces them, so the result may be empty.
func (s *NetworkScanner) Networks(req *rackrpc.ScanAllNetworksRequest) ([]netip.Prefix, error) {
	seen := make(map[netip.Prefix]struct{})

	var nets []netip.Prefix

	add := func(p netip.Prefix) {
		p = p.Masked()
		if _, ok := seen[p]; ok {
			return
		}

		seen[p] = struct{}{}
		nets = append(nets, p)
	}

	if len(req.CIDRs) > 0 {
		for _, raw := range req.CIDRs {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", errInvalidCIDR, raw)
			}

			add(p)
		}
	} else {
		for _, iface := range s.ifaces {
			for _, raw := range iface.Addresses {
				p, err := netip.ParsePrefix(raw)
				if err != nil || !p.Addr().Is4() || p.Bits() >= 31 || p.Addr().IsLoopback() {
					continue
				}

				add(p)
			}
		}
	}

	if !req.Force {
		s.mu.Lock()
		cutoff := s.now().Add(-rescanInterval)
		fresh := nets[:0]

		for _, p := range nets {
			if last, ok := s.lastScanned[p]; ok && last.After(cutoff) {
				s.logger.Debug().Str("cidr", p.String()).Msg("skipping recently scanned network")

				continue
			}

			fresh = append(fresh, p)
		}

		nets = fresh
		s.mu.Unlock()
	}

	sort.Slice(nets, func(i, j int) bool { return nets[i].String() < nets[j].String() })

	return nets, nil
}

// Scan sweeps every network then publishes the neighbour table. Slow scans
// probe one host at a time.
func (s *NetworkScanner) Scan(ctx context.Context, req *rackrpc.ScanAllNetworksRequest, networks []netip.Prefix) error {
	started := s.now()

	var hosts []netip.Addr

	for _, p := range networks {
		hs, truncated := expandPrefix(p, s.maxHosts)
		if truncated {
			s.logger.Warn().Str("cidr", p.String()).Int("max_hosts", s.maxHosts).Msg("network too large, sweeping a subset")
		}

		hosts = append(hosts, hs...)
	}

	concurrency := req.Threads
	if req.Slow {
		concurrency = 1
	}

	alive := s.sweeper.Sweep(ctx, hosts, concurrency)

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, p := range networks {
		s.lastScanned[p] = started
	}
	s.mu.Unlock()

	neighbours, err := s.table.Neighbours()
	if err != nil {
		return err
	}

	published := 0
	observedAt := s.now().UTC()

	for _, n := range neighbours {
		obs := &models.Observation{
			Kind:       models.ObservationNeighbour,
			Interface:  s.interfaceRef(n.Device),
			IP:         n.IP,
			MACAddress: n.MACAddress,
			ObservedAt: observedAt,
		}

		if err := s.publisher.Publish(ctx, obs); err != nil {
			s.logger.Warn().Err(err).Str("ip", n.IP).Msg("failed to publish observation")

			continue
		}

		published++
	}

	s.logger.Info().
		Int("networks", len(networks)).
		Int("hosts", len(hosts)).
		Int("responsive", alive).
		Int("published", published).
		Dur("elapsed", s.now().Sub(started)).
		Msg("network scan finished")

	return nil
}

func (s *NetworkScanner) interfaceRef(device string) models.InterfaceRef {
	ref := models.InterfaceRef{SystemID: s.systemID, Name: device}

	for _, iface := range s.ifaces {
		if iface.Name == device {
			ref.ID = iface.ID

			break
		}
	}

	return ref
}

// expandPrefix lists the usable IPv4 host addresses of p, at most limit of
// them. Network and broadcast addresses are excluded.
func expandPrefix(p netip.Prefix, limit int) ([]netip.Addr, bool) {
	if !p.Addr().Is4() {
		return nil, false
	}

	p = p.Masked()

	var (
		hosts []netip.Addr
		last  netip.Addr
	)

	if p.Bits() < 31 {
		last = lastAddr(p)
	}

	for a := p.Addr(); p.Contains(a); a = a.Next() {
		if p.Bits() < 31 && (a == p.Addr() || a == last) {
			continue
		}

		if len(hosts) == limit {
			return hosts, true
		}

		hosts = append(hosts, a)

		if !a.Next().IsValid() {
			break
		}
	}

	return hosts, false
}

func lastAddr(p netip.Prefix) netip.Addr {
	b := p.Addr().As4()
	hostBits := 32 - p.Bits()

	for i := 3; i >= 0 && hostBits > 0; i-- {
		n := min(hostBits, 8)
		b[i] |= byte(0xff >> (8 - n))
		hostBits -= n
	}

	return netip.AddrFrom4(b)
}
