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

// Package inventory answers whether a MAC or IP address is configured on any
// interface in the fleet.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"

	"github.com/carverauto/rackradar/pkg/models"
)

var (
	// ErrInvalidMAC is returned for MAC addresses that cannot be parsed.
	ErrInvalidMAC = errors.New("invalid MAC address")
	// ErrInvalidAddress is returned for addresses that cannot be parsed.
	ErrInvalidAddress = errors.New("invalid IP address")
)

// Directory is the configured interface/address view used by the discovery
// store's unknown-* queries.
type Directory interface {
	MACIsConfigured(ctx context.Context, mac string) (bool, error)
	// IPIsConfigured reports whether ip is assigned to any interface. When
	// within is non-nil the address must also fall inside that prefix.
	IPIsConfigured(ctx context.Context, ip netip.Addr, within *netip.Prefix) (bool, error)
}

// NormalizeMAC returns the canonical lower-case colon-separated form.
func NormalizeMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(mac))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}

	return strings.ToLower(hw.String()), nil
}

type ifaceKey struct {
	systemID string
	name     string
}

type ifaceEntry struct {
	mac       string
	addresses map[netip.Addr]netip.Prefix
}

// Memory is an in-process Directory.
type Memory struct {
	mu     sync.RWMutex
	ifaces map[ifaceKey]*ifaceEntry
}

var _ Directory = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{ifaces: make(map[ifaceKey]*ifaceEntry)}
}

// SetInterface creates or updates an interface's MAC address.
func (m *Memory) SetInterface(systemID, name, mac string) error {
	normalized, err := NormalizeMAC(mac)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entryLocked(ifaceKey{systemID, name})
	e.mac = normalized

	return nil
}

// RemoveInterface deletes an interface and its addresses.
func (m *Memory) RemoveInterface(systemID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.ifaces, ifaceKey{systemID, name})
}

// SetAddress assigns an address in CIDR notation to an interface.
func (m *Memory) SetAddress(systemID, name, cidr string) error {
	prefix, err := ParseAssigned(cidr)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entryLocked(ifaceKey{systemID, name})
	e.addresses[prefix.Addr()] = prefix

	return nil
}

// RemoveAddress unassigns an address from an interface.
func (m *Memory) RemoveAddress(systemID, name, ip string) error {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.ifaces[ifaceKey{systemID, name}]; ok {
		delete(e.addresses, addr.Unmap())
	}

	return nil
}

// SyncController replaces everything known about a controller's interfaces
// with the given set.
func (m *Memory) SyncController(_ context.Context, systemID string, ifaces []models.ConfiguredInterface) error {
	next := make(map[ifaceKey]*ifaceEntry, len(ifaces))

	for _, iface := range ifaces {
		e := &ifaceEntry{addresses: make(map[netip.Addr]netip.Prefix)}

		if iface.MACAddress != "" {
			mac, err := NormalizeMAC(iface.MACAddress)
			if err != nil {
				return err
			}

			e.mac = mac
		}

		for _, cidr := range iface.Addresses {
			prefix, err := ParseAssigned(cidr)
			if err != nil {
				return err
			}

			e.addresses[prefix.Addr()] = prefix
		}

		next[ifaceKey{systemID, iface.Name}] = e
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.ifaces {
		if k.systemID == systemID {
			delete(m.ifaces, k)
		}
	}

	for k, e := range next {
		m.ifaces[k] = e
	}

	return nil
}

func (m *Memory) MACIsConfigured(_ context.Context, mac string) (bool, error) {
	normalized, err := NormalizeMAC(mac)
	if err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.ifaces {
		if e.mac == normalized {
			return true, nil
		}
	}

	return false, nil
}

func (m *Memory) IPIsConfigured(_ context.Context, ip netip.Addr, within *netip.Prefix) (bool, error) {
	ip = ip.Unmap()

	if within != nil && !within.Contains(ip) {
		return false, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.ifaces {
		if _, ok := e.addresses[ip]; ok {
			return true, nil
		}
	}

	return false, nil
}

func (m *Memory) entryLocked(k ifaceKey) *ifaceEntry {
	e, ok := m.ifaces[k]
	if !ok {
		e = &ifaceEntry{addresses: make(map[netip.Addr]netip.Prefix)}
		m.ifaces[k] = e
	}

	return e
}

// ParseAssigned parses an interface address given as "10.0.0.5/24" or as a
// bare address, which becomes a single-host prefix. IPv4-mapped IPv6 input is
// unmapped.
func ParseAssigned(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)

	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}

		if p.Addr().Is4In6() {
			return netip.PrefixFrom(p.Addr().Unmap(), max(p.Bits()-96, 0)), nil
		}

		return p, nil
	}

	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	a = a.Unmap()

	return netip.PrefixFrom(a, a.BitLen()), nil
}
