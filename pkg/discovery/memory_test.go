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
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/rackradar/pkg/inventory"
	"github.com/carverauto/rackradar/pkg/models"
)

//nolint:gochecknoglobals // test fixture
var (
	t0   = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	eth0 = models.InterfaceRef{SystemID: "r1", Name: "eth0", ID: 7}
	eth1 = models.InterfaceRef{SystemID: "r2", Name: "eth1", ID: 9}
)

func neighbourObs(ref models.InterfaceRef, ip, mac string, at time.Time) *models.NeighbourObservation {
	return &models.NeighbourObservation{Interface: ref, IP: ip, MACAddress: mac, ObservedAt: at}
}

func newStore(t *testing.T) (*MemoryStore, *inventory.Memory) {
	t.Helper()

	dir := inventory.NewMemory()

	return NewMemoryStore(dir), dir
}

func TestMemoryStore_UpsertIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	first, err := s.UpsertNeighbour(ctx, neighbourObs(eth0, "10.0.0.1", "00:11:22:33:44:55", t0))
	require.NoError(t, err)

	second, err := s.UpsertNeighbour(ctx, neighbourObs(eth0, "10.0.0.1", "00-11-22-33-44-55", t0))
	require.NoError(t, err)

	assert.Equal(t, first, second)

	all, err := s.Query(ctx, FilterAll)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, t0, all[0].FirstSeen)
	assert.Equal(t, t0, all[0].LastSeen)
	assert.Equal(t, DiscoveryID(eth0, "10.0.0.1", "00:11:22:33:44:55"), all[0].DiscoveryID)
	assert.Equal(t, 7, all[0].Interface.ID)
}

func TestMemoryStore_LastSeenIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	t1 := t0.Add(time.Hour)

	_, err := s.UpsertNeighbour(ctx, neighbourObs(eth0, "10.0.0.1", "00:11:22:33:44:55", t1))
	require.NoError(t, err)

	d, err := s.UpsertNeighbour(ctx, neighbourObs(eth0, "10.0.0.1", "00:11:22:33:44:55", t0))
	require.NoError(t, err)

	assert.Equal(t, t1, d.LastSeen)
	assert.Equal(t, t1, d.FirstSeen, "first_seen is set only on creation")

	t2 := t1.Add(time.Minute)
	d, err = s.UpsertNeighbour(ctx, neighbourObs(eth0, "10.0.0.1", "00:11:22:33:44:55", t2))
	require.NoError(t, err)
	assert.Equal(t, t2, d.LastSeen)
	assert.Equal(t, t1, d.FirstSeen)
}

func TestMemoryStore_ConcurrentSameKeyUpserts(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, _ = s.UpsertNeighbour(ctx, neighbourObs(eth0, "10.0.0.1", "00:11:22:33:44:55", t0.Add(time.Duration(i)*time.Second)))
		}(i)
	}

	wg.Wait()

	all, err := s.Query(ctx, FilterAll)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, t0.Add(49*time.Second), all[0].LastSeen)
}

func TestMemoryStore_QueryOrdering(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	for _, o := range []*models.NeighbourObservation{
		neighbourObs(eth0, "10.0.0.3", "00:00:00:00:00:03", t0),
		neighbourObs(eth0, "10.0.0.1", "00:00:00:00:00:01", t0.Add(2*time.Minute)),
		neighbourObs(eth1, "10.0.0.2", "00:00:00:00:00:02", t0),
		neighbourObs(eth0, "10.0.0.2", "00:00:00:00:00:02", t0),
	} {
		_, err := s.UpsertNeighbour(ctx, o)
		require.NoError(t, err)
	}

	all, err := s.Query(ctx, FilterAll)
	require.NoError(t, err)

	got := make([]string, 0, len(all))
	for _, d := range all {
		got = append(got, d.Interface.SystemID+"/"+d.IP)
	}

	assert.Equal(t, []string{"r1/10.0.0.1", "r1/10.0.0.2", "r1/10.0.0.3", "r2/10.0.0.2"}, got)
}

func TestMemoryStore_UnknownFilters(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t)

	// a: both known, b: MAC known only, c: IP known only, d: neither
	require.NoError(t, dir.SetInterface("r9", "eth0", "aa:aa:aa:aa:aa:aa"))
	require.NoError(t, dir.SetAddress("r9", "eth0", "10.0.0.1/24"))
	require.NoError(t, dir.SetInterface("r9", "eth1", "bb:bb:bb:bb:bb:bb"))
	require.NoError(t, dir.SetAddress("r9", "eth2", "10.0.0.3/24"))

	for _, o := range []*models.NeighbourObservation{
		neighbourObs(eth0, "10.0.0.1", "aa:aa:aa:aa:aa:aa", t0.Add(4*time.Second)),
		neighbourObs(eth0, "10.0.0.2", "bb:bb:bb:bb:bb:bb", t0.Add(3*time.Second)),
		neighbourObs(eth0, "10.0.0.3", "cc:cc:cc:cc:cc:cc", t0.Add(2*time.Second)),
		neighbourObs(eth0, "10.0.0.4", "dd:dd:dd:dd:dd:dd", t0.Add(1*time.Second)),
	} {
		_, err := s.UpsertNeighbour(ctx, o)
		require.NoError(t, err)
	}

	ips := func(f Filter) []string {
		ds, err := s.Query(ctx, f)
		require.NoError(t, err)

		out := make([]string, 0, len(ds))
		for _, d := range ds {
			out = append(out, d.IP)
		}

		return out
	}

	assert.Equal(t, []string{"10.0.0.3", "10.0.0.4"}, ips(FilterUnknownMAC))
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.4"}, ips(FilterUnknownIP))
	assert.Equal(t, []string{"10.0.0.4"}, ips(FilterUnknownIPAndMAC))

	// Configuring the MAC takes the record out of the unknown set without
	// touching stored records.
	require.NoError(t, dir.SetInterface("r9", "eth3", "dd:dd:dd:dd:dd:dd"))

	assert.Equal(t, []string{"10.0.0.3"}, ips(FilterUnknownMAC))
	assert.Empty(t, ips(FilterUnknownIPAndMAC))
	assert.Len(t, ips(FilterAll), 4)

	dir.RemoveInterface("r9", "eth3")
	assert.Equal(t, []string{"10.0.0.3", "10.0.0.4"}, ips(FilterUnknownMAC))

	_, err := s.Query(ctx, Filter("by_magic"))
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestMemoryStore_MDNSHostnames(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	_, err := s.UpsertNeighbour(ctx, neighbourObs(eth0, "10.0.0.1", "00:11:22:33:44:55", t0))
	require.NoError(t, err)

	require.NoError(t, s.UpsertMDNS(ctx, &models.MDNSObservation{Interface: eth0, IP: "10.0.0.1", Hostname: "printer", ObservedAt: t0}))
	require.NoError(t, s.UpsertMDNS(ctx, &models.MDNSObservation{Interface: eth0, IP: "10.0.0.1", Hostname: "stale", ObservedAt: t0.Add(-time.Hour)}))

	d, err := s.GetBySpecifier(ctx, Specifier{Kind: SpecifierHostname, Value: "PRINTER"})
	require.NoError(t, err)
	assert.Equal(t, "printer", d.Hostname)

	n, err := s.Clear(ctx, ScopeMDNS)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := s.Query(ctx, FilterAll)
	require.NoError(t, err)
	require.Len(t, all, 1, "clearing mdns keeps neighbour discoveries")
	assert.Empty(t, all[0].Hostname)

	require.ErrorIs(t, s.UpsertMDNS(ctx, &models.MDNSObservation{Interface: eth0, IP: "10.0.0.1", ObservedAt: t0}), ErrInvalidObservation)
}

func TestMemoryStore_ClearScopes(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *MemoryStore {
		s, _ := newStore(t)
		_, err := s.UpsertNeighbour(ctx, neighbourObs(eth0, "10.0.0.1", "00:11:22:33:44:55", t0))
		require.NoError(t, err)
		require.NoError(t, s.UpsertMDNS(ctx, &models.MDNSObservation{Interface: eth0, IP: "10.0.0.1", Hostname: "h", ObservedAt: t0}))

		return s
	}

	s := seed(t)
	n, err := s.Clear(ctx, ScopeNeighbours)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	all, _ := s.Query(ctx, FilterAll)
	assert.Empty(t, all)

	s = seed(t)
	n, err = s.Clear(ctx, ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s = seed(t)
	_, err = s.Clear(ctx, Scope(""))
	require.ErrorIs(t, err, ErrInvalidScope)
	all, _ = s.Query(ctx, FilterAll)
	assert.Len(t, all, 1, "invalid scope deletes nothing")
}

func TestMemoryStore_ClearSerialisedAgainstUpserts(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	type done struct {
		ip     string
		before bool
	}

	var clearStarted atomic.Bool

	results := make(chan done, 4*500)

	var wg sync.WaitGroup

	for g := 0; g < 4; g++ {
		wg.Add(1)

		go func(g int) {
			defer wg.Done()

			for i := 0; i < 500; i++ {
				ip := fmt.Sprintf("10.%d.%d.%d", g, i/256, i%256)
				_, err := s.UpsertNeighbour(ctx, neighbourObs(eth0, ip, "00:11:22:33:44:55", t0))
				if err != nil {
					continue
				}

				results <- done{ip: ip, before: !clearStarted.Load()}
			}
		}(g)
	}

	time.Sleep(time.Millisecond)
	clearStarted.Store(true)

	_, err := s.Clear(ctx, ScopeAll)
	require.NoError(t, err)

	wg.Wait()
	close(results)

	remaining := map[string]bool{}
	all, err := s.Query(ctx, FilterAll)
	require.NoError(t, err)

	for _, d := range all {
		remaining[d.IP] = true
	}

	for r := range results {
		if r.before {
			assert.False(t, remaining[r.ip], "record %s written before clear survived it", r.ip)
		}
	}
}

func TestMemoryStore_GetAndSpecifiers(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	older, err := s.UpsertNeighbour(ctx, neighbourObs(eth0, "10.0.0.1", "00:11:22:33:44:55", t0))
	require.NoError(t, err)

	newer, err := s.UpsertNeighbour(ctx, neighbourObs(eth1, "10.0.0.1", "00:11:22:33:44:66", t0.Add(time.Minute)))
	require.NoError(t, err)

	got, err := s.Get(ctx, older.DiscoveryID)
	require.NoError(t, err)
	assert.Equal(t, older, got)

	spec, err := ParseSpecifier("ip:10.0.0.1")
	require.NoError(t, err)

	got, err = s.GetBySpecifier(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, newer.DiscoveryID, got.DiscoveryID, "most recently seen match wins")

	spec, err = ParseSpecifier("mac:00-11-22-33-44-55")
	require.NoError(t, err)

	got, err = s.GetBySpecifier(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, older.DiscoveryID, got.DiscoveryID)

	spec, err = ParseSpecifier(older.DiscoveryID)
	require.NoError(t, err)

	got, err = s.GetBySpecifier(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, older.DiscoveryID, got.DiscoveryID)

	_, err = s.Get(ctx, "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)

	spec, _ = ParseSpecifier("ip:10.9.9.9")
	_, err = s.GetBySpecifier(ctx, spec)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteForInterface(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	d, err := s.UpsertNeighbour(ctx, neighbourObs(eth0, "10.0.0.1", "00:11:22:33:44:55", t0))
	require.NoError(t, err)
	_, err = s.UpsertNeighbour(ctx, neighbourObs(eth1, "10.0.0.2", "00:11:22:33:44:66", t0))
	require.NoError(t, err)
	require.NoError(t, s.UpsertMDNS(ctx, &models.MDNSObservation{Interface: eth0, IP: "10.0.0.1", Hostname: "h", ObservedAt: t0}))

	n, err := s.DeleteForInterface(ctx, eth0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Get(ctx, d.DiscoveryID)
	require.ErrorIs(t, err, ErrNotFound)

	all, _ := s.Query(ctx, FilterAll)
	assert.Len(t, all, 1)
}

func TestMemoryStore_RejectsInvalidObservations(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	for _, o := range []*models.NeighbourObservation{
		neighbourObs(models.InterfaceRef{}, "10.0.0.1", "00:11:22:33:44:55", t0),
		neighbourObs(eth0, "not-an-ip", "00:11:22:33:44:55", t0),
		neighbourObs(eth0, "10.0.0.1", "bogus", t0),
		neighbourObs(eth0, "10.0.0.1", "00:11:22:33:44:55", time.Time{}),
	} {
		_, err := s.UpsertNeighbour(ctx, o)
		require.ErrorIs(t, err, ErrInvalidObservation)
	}
}

func TestParseSpecifier(t *testing.T) {
	tests := []struct {
		in      string
		want    Specifier
		wantErr bool
	}{
		{in: "ip:10.0.0.1", want: Specifier{Kind: SpecifierIP, Value: "10.0.0.1"}},
		{in: "ip:fe80::1", want: Specifier{Kind: SpecifierIP, Value: "fe80::1"}},
		{in: "IP:::ffff:10.0.0.1", want: Specifier{Kind: SpecifierIP, Value: "10.0.0.1"}},
		{in: "mac:00:11:22:AA:BB:CC", want: Specifier{Kind: SpecifierMAC, Value: "00:11:22:aa:bb:cc"}},
		{in: "hostname:Printer", want: Specifier{Kind: SpecifierHostname, Value: "printer"}},
		{in: "6F1B2D8E-3C55-5B7A-9A0E-2F3B7C1D4E90", want: Specifier{Kind: SpecifierID, Value: "6f1b2d8e-3c55-5b7a-9a0e-2f3b7c1d4e90"}},
		{in: "id:abc", want: Specifier{Kind: SpecifierID, Value: "abc"}},
		{in: "ip:999.0.0.1", wantErr: true},
		{in: "mac:nope", wantErr: true},
		{in: "ip:", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSpecifier(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSpecifier)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFilter(t *testing.T) {
	for in, want := range map[string]Filter{
		"":                      FilterAll,
		"all":                   FilterAll,
		"by_unknown_mac":        FilterUnknownMAC,
		"by_unknown_ip":         FilterUnknownIP,
		"by_unknown_ip_and_mac": FilterUnknownIPAndMAC,
	} {
		got, err := ParseFilter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFilter("by_unknown_cat")
	require.ErrorIs(t, err, ErrInvalidFilter)
}

type countingRecorder struct {
	upserts map[models.ObservationKind]int
	clears  map[string]int
}

func (c *countingRecorder) RecordUpsert(_ context.Context, kind models.ObservationKind) {
	c.upserts[kind]++
}

func (c *countingRecorder) RecordClear(_ context.Context, scope string, removed int) {
	c.clears[scope] += removed
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	base, _ := newStore(t)

	assert.Same(t, base, Instrument(base, nil))

	rec := &countingRecorder{upserts: map[models.ObservationKind]int{}, clears: map[string]int{}}
	s := Instrument(base, rec)

	_, err := s.UpsertNeighbour(ctx, neighbourObs(eth0, "10.0.0.1", "00:11:22:33:44:55", t0))
	require.NoError(t, err)
	_, err = s.UpsertNeighbour(ctx, neighbourObs(eth0, "bad", "00:11:22:33:44:55", t0))
	require.Error(t, err)
	require.NoError(t, s.UpsertMDNS(ctx, &models.MDNSObservation{Interface: eth0, IP: "10.0.0.1", Hostname: "h", ObservedAt: t0}))

	_, err = s.Clear(ctx, ScopeAll)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.upserts[models.ObservationNeighbour])
	assert.Equal(t, 1, rec.upserts[models.ObservationMDNS])
	assert.Equal(t, 2, rec.clears["all"])
}
