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

// Package discovery stores hosts observed passively by rack controllers and
// answers filtered queries over them.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/google/uuid"

	"github.com/carverauto/rackradar/pkg/inventory"
	"github.com/carverauto/rackradar/pkg/models"
)

var (
	// ErrNotFound is returned when a single-record lookup matches nothing.
	ErrNotFound = errors.New("discovery not found")
	// ErrInvalidSpecifier is returned for malformed specifiers.
	ErrInvalidSpecifier = errors.New("invalid discovery specifier")
	// ErrInvalidScope is returned for unknown clear scopes.
	ErrInvalidScope = errors.New("invalid clear scope")
	// ErrInvalidFilter is returned for unknown query operations.
	ErrInvalidFilter = errors.New("invalid discovery filter")
	// ErrInvalidObservation is returned for observations missing required fields.
	ErrInvalidObservation = errors.New("invalid observation")
)

//go:generate mockgen -destination=mock_discovery.go -package=discovery github.com/carverauto/rackradar/pkg/discovery Store

// Store holds discovery records. Implementations must serialise Clear
// against concurrent upserts.
type Store interface {
	UpsertNeighbour(ctx context.Context, obs *models.NeighbourObservation) (*models.Discovery, error)
	UpsertMDNS(ctx context.Context, obs *models.MDNSObservation) error
	Query(ctx context.Context, filter Filter) ([]*models.Discovery, error)
	Get(ctx context.Context, discoveryID string) (*models.Discovery, error)
	GetBySpecifier(ctx context.Context, spec Specifier) (*models.Discovery, error)
	// Clear deletes every record in scope and returns how many rows went.
	Clear(ctx context.Context, scope Scope) (int, error)
	// DeleteForInterface removes everything observed by an interface that
	// no longer exists.
	DeleteForInterface(ctx context.Context, ref models.InterfaceRef) (int, error)
}

// Filter selects which discoveries Query returns.
type Filter string

const (
	FilterAll              Filter = ""
	FilterUnknownMAC       Filter = "by_unknown_mac"
	FilterUnknownIP        Filter = "by_unknown_ip"
	FilterUnknownIPAndMAC  Filter = "by_unknown_ip_and_mac"
	filterAllExplicitAlias        = "all"
)

// ParseFilter maps an API op value onto a Filter. The empty string and
// "all" select every record.
func ParseFilter(op string) (Filter, error) {
	switch f := Filter(strings.TrimSpace(op)); f {
	case FilterAll, filterAllExplicitAlias:
		return FilterAll, nil
	case FilterUnknownMAC, FilterUnknownIP, FilterUnknownIPAndMAC:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFilter, op)
	}
}

// Scope selects which observations Clear removes.
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeMDNS       Scope = "mdns"
	ScopeNeighbours Scope = "neighbours"
)

func (s Scope) Validate() error {
	switch s {
	case ScopeAll, ScopeMDNS, ScopeNeighbours:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidScope, string(s))
	}
}

// SpecifierKind is the attribute a Specifier matches on.
type SpecifierKind string

const (
	SpecifierID       SpecifierKind = "id"
	SpecifierIP       SpecifierKind = "ip"
	SpecifierMAC      SpecifierKind = "mac"
	SpecifierHostname SpecifierKind = "hostname"
)

// Specifier selects one record, e.g. "ip:10.0.0.1". A token without a known
// prefix is a discovery id.
type Specifier struct {
	Kind  SpecifierKind
	Value string
}

func (s Specifier) String() string {
	return string(s.Kind) + ":" + s.Value
}

// ParseSpecifier parses and normalises a specifier token.
func ParseSpecifier(raw string) (Specifier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Specifier{}, fmt.Errorf("%w: empty", ErrInvalidSpecifier)
	}

	kind, value := SpecifierID, raw

	if prefix, rest, ok := strings.Cut(raw, ":"); ok {
		switch k := SpecifierKind(strings.ToLower(prefix)); k {
		case SpecifierID, SpecifierIP, SpecifierMAC, SpecifierHostname:
			kind, value = k, strings.TrimSpace(rest)
		}
	}

	if value == "" {
		return Specifier{}, fmt.Errorf("%w: %q has no value", ErrInvalidSpecifier, raw)
	}

	switch kind {
	case SpecifierID:
		// Ids that are not UUIDs cannot exist, so they simply do not match.
		if id, err := uuid.Parse(value); err == nil {
			value = id.String()
		}
	case SpecifierIP:
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return Specifier{}, fmt.Errorf("%w: %q is not an IP address", ErrInvalidSpecifier, value)
		}

		value = addr.Unmap().String()
	case SpecifierMAC:
		mac, err := inventory.NormalizeMAC(value)
		if err != nil {
			return Specifier{}, fmt.Errorf("%w: %q is not a MAC address", ErrInvalidSpecifier, value)
		}

		value = mac
	case SpecifierHostname:
		value = strings.ToLower(value)
	}

	return Specifier{Kind: kind, Value: value}, nil
}

//nolint:gochecknoglobals // fixed namespace for discovery ids
var idNamespace = uuid.MustParse("6f1b2d8e-3c55-5b7a-9a0e-2f3b7c1d4e90")

// DiscoveryID derives the stable identifier of a (interface, IP, MAC)
// identity. The same identity always maps to the same id.
func DiscoveryID(ref models.InterfaceRef, ip, mac string) string {
	key := strings.Join([]string{ref.SystemID, ref.Name, ip, mac}, "|")

	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// NormalizeNeighbour validates an observation and canonicalises its IP and
// MAC in place.
func NormalizeNeighbour(obs *models.NeighbourObservation) error {
	if obs == nil || obs.Interface.SystemID == "" || obs.Interface.Name == "" {
		return fmt.Errorf("%w: interface reference is required", ErrInvalidObservation)
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(obs.IP))
	if err != nil {
		return fmt.Errorf("%w: ip %q", ErrInvalidObservation, obs.IP)
	}

	mac, err := inventory.NormalizeMAC(obs.MACAddress)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidObservation, err)
	}

	if obs.ObservedAt.IsZero() {
		return fmt.Errorf("%w: observed_at is required", ErrInvalidObservation)
	}

	obs.IP = addr.Unmap().String()
	obs.MACAddress = mac
	obs.ObservedAt = obs.ObservedAt.UTC()

	return nil
}

// NormalizeMDNS validates an mDNS observation in place.
func NormalizeMDNS(obs *models.MDNSObservation) error {
	if obs == nil || obs.Interface.SystemID == "" || obs.Interface.Name == "" {
		return fmt.Errorf("%w: interface reference is required", ErrInvalidObservation)
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(obs.IP))
	if err != nil {
		return fmt.Errorf("%w: ip %q", ErrInvalidObservation, obs.IP)
	}

	if strings.TrimSpace(obs.Hostname) == "" {
		return fmt.Errorf("%w: hostname is required", ErrInvalidObservation)
	}

	if obs.ObservedAt.IsZero() {
		return fmt.Errorf("%w: observed_at is required", ErrInvalidObservation)
	}

	obs.IP = addr.Unmap().String()
	obs.Hostname = strings.TrimSpace(obs.Hostname)
	obs.ObservedAt = obs.ObservedAt.UTC()

	return nil
}

// matchUnknown evaluates an unknown-* filter for one record against the
// live directory.
func matchUnknown(ctx context.Context, dir inventory.Directory, filter Filter, d *models.Discovery) (bool, error) {
	macKnown := func() (bool, error) { return dir.MACIsConfigured(ctx, d.MACAddress) }
	ipKnown := func() (bool, error) {
		addr, err := netip.ParseAddr(d.IP)
		if err != nil {
			return false, err
		}

		return dir.IPIsConfigured(ctx, addr, nil)
	}

	switch filter {
	case FilterUnknownMAC:
		known, err := macKnown()
		return !known, err
	case FilterUnknownIP:
		known, err := ipKnown()
		return !known, err
	case FilterUnknownIPAndMAC:
		known, err := macKnown()
		if err != nil || known {
			return false, err
		}

		known, err = ipKnown()

		return !known, err
	default:
		return true, nil
	}
}
