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

package discovery

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/rackradar/pkg/inventory"
	"github.com/carverauto/rackradar/pkg/models"
)

type neighbourKey struct {
	systemID string
	iface    string
	ip       string
	mac      string
}

type neighbour struct {
	id        string
	ifaceID   int
	firstSeen time.Time
	lastSeen  time.Time
}

type mdnsKey struct {
	systemID string
	iface    string
	ip       string
}

type mdnsEntry struct {
	hostname  string
	firstSeen time.Time
	lastSeen  time.Time
}

// MemoryStore is a process-local Store. A single mutex orders clears and
// upserts, so a clear removes every observation recorded before it.
type MemoryStore struct {
	mu         sync.RWMutex
	neighbours map[neighbourKey]*neighbour
	byID       map[string]neighbourKey
	mdns       map[mdnsKey]*mdnsEntry
	directory  inventory.Directory
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store evaluating unknown-* filters
// against dir.
func NewMemoryStore(dir inventory.Directory) *MemoryStore {
	return &MemoryStore{
		neighbours: make(map[neighbourKey]*neighbour),
		byID:       make(map[string]neighbourKey),
		mdns:       make(map[mdnsKey]*mdnsEntry),
		directory:  dir,
	}
}

// UpsertNeighbour records an IP/MAC pairing. Re-observing a known identity
// only moves last_seen forward.
func (s *MemoryStore) UpsertNeighbour(_ context.Context, obs *models.NeighbourObservation) (*models.Discovery, error) {
	o := *obs
	if err := NormalizeNeighbour(&o); err != nil {
		return nil, err
	}

	k := neighbourKey{o.Interface.SystemID, o.Interface.Name, o.IP, o.MACAddress}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.neighbours[k]
	if !ok {
		n = &neighbour{
			id:        DiscoveryID(o.Interface, o.IP, o.MACAddress),
			firstSeen: o.ObservedAt,
			lastSeen:  o.ObservedAt,
		}
		s.neighbours[k] = n
		s.byID[n.id] = k
	}

	if o.Interface.ID != 0 {
		n.ifaceID = o.Interface.ID
	}

	if o.ObservedAt.After(n.lastSeen) {
		n.lastSeen = o.ObservedAt
	}

	return s.recordLocked(k, n), nil
}

// UpsertMDNS records a hostname announced for an IP on an interface.
func (s *MemoryStore) UpsertMDNS(_ context.Context, obs *models.MDNSObservation) error {
	o := *obs
	if err := NormalizeMDNS(&o); err != nil {
		return err
	}

	k := mdnsKey{o.Interface.SystemID, o.Interface.Name, o.IP}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.mdns[k]
	if !ok {
		s.mdns[k] = &mdnsEntry{hostname: o.Hostname, firstSeen: o.ObservedAt, lastSeen: o.ObservedAt}
		return nil
	}

	if !o.ObservedAt.Before(e.lastSeen) {
		e.hostname = o.Hostname
		e.lastSeen = o.ObservedAt
	}

	return nil
}

// Query returns matching records ordered by last_seen, newest first. Unknown
// filters are evaluated against the directory at call time.
func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]*models.Discovery, error) {
	if _, err := ParseFilter(string(filter)); err != nil {
		return nil, err
	}

	all := s.snapshot()

	if filter == FilterAll {
		return all, nil
	}

	out := make([]*models.Discovery, 0, len(all))

	for _, d := range all {
		ok, err := matchUnknown(ctx, s.directory, filter, d)
		if err != nil {
			return nil, err
		}

		if ok {
			out = append(out, d)
		}
	}

	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, discoveryID string) (*models.Discovery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.byID[strings.ToLower(discoveryID)]
	if !ok {
		return nil, ErrNotFound
	}

	return s.recordLocked(k, s.neighbours[k]), nil
}

// GetBySpecifier returns the most recently seen record matching spec.
func (s *MemoryStore) GetBySpecifier(ctx context.Context, spec Specifier) (*models.Discovery, error) {
	if spec.Kind == SpecifierID {
		return s.Get(ctx, spec.Value)
	}

	for _, d := range s.snapshot() {
		if matchSpecifier(spec, d) {
			return d, nil
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStore) Clear(_ context.Context, scope Scope) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	if scope == ScopeAll || scope == ScopeNeighbours {
		n += len(s.neighbours)
		s.neighbours = make(map[neighbourKey]*neighbour)
		s.byID = make(map[string]neighbourKey)
	}

	if scope == ScopeAll || scope == ScopeMDNS {
		n += len(s.mdns)
		s.mdns = make(map[mdnsKey]*mdnsEntry)
	}

	return n, nil
}

func (s *MemoryStore) DeleteForInterface(_ context.Context, ref models.InterfaceRef) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for k, v := range s.neighbours {
		if k.systemID == ref.SystemID && k.iface == ref.Name {
			delete(s.neighbours, k)
			delete(s.byID, v.id)
			n++
		}
	}

	for k := range s.mdns {
		if k.systemID == ref.SystemID && k.iface == ref.Name {
			delete(s.mdns, k)
			n++
		}
	}

	return n, nil
}

// snapshot copies every record in query order.
func (s *MemoryStore) snapshot() []*models.Discovery {
	s.mu.RLock()

	out := make([]*models.Discovery, 0, len(s.neighbours))
	for k, n := range s.neighbours {
		out = append(out, s.recordLocked(k, n))
	}

	s.mu.RUnlock()

	SortDiscoveries(out)

	return out
}

func (s *MemoryStore) recordLocked(k neighbourKey, n *neighbour) *models.Discovery {
	d := &models.Discovery{
		DiscoveryID: n.id,
		Interface: models.InterfaceRef{
			SystemID: k.systemID,
			Name:     k.iface,
			ID:       n.ifaceID,
		},
		IP:         k.ip,
		MACAddress: k.mac,
		FirstSeen:  n.firstSeen,
		LastSeen:   n.lastSeen,
	}

	if e, ok := s.mdns[mdnsKey{k.systemID, k.iface, k.ip}]; ok {
		d.Hostname = e.hostname
	}

	return d
}

// SortDiscoveries orders records by last_seen descending, breaking ties on
// the identity key.
func SortDiscoveries(ds []*models.Discovery) {
	sort.Slice(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}

		if a.Interface.SystemID != b.Interface.SystemID {
			return a.Interface.SystemID < b.Interface.SystemID
		}

		if a.Interface.Name != b.Interface.Name {
			return a.Interface.Name < b.Interface.Name
		}

		if a.IP != b.IP {
			return a.IP < b.IP
		}

		return a.MACAddress < b.MACAddress
	})
}

func matchSpecifier(spec Specifier, d *models.Discovery) bool {
	switch spec.Kind {
	case SpecifierID:
		return d.DiscoveryID == spec.Value
	case SpecifierIP:
		return d.IP == spec.Value
	case SpecifierMAC:
		return d.MACAddress == spec.Value
	case SpecifierHostname:
		return strings.EqualFold(d.Hostname, spec.Value)
	default:
		return false
	}
}
