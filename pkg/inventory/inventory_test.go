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

package inventory

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/rackradar/pkg/models"
)

func TestNormalizeMAC(t *testing.T) {
	for _, in := range []string{"00:11:22:AA:BB:CC", "00-11-22-aa-bb-cc", "0011.22aa.bbcc", " 00:11:22:aa:bb:cc "} {
		got, err := NormalizeMAC(in)
		require.NoError(t, err, in)
		assert.Equal(t, "00:11:22:aa:bb:cc", got, in)
	}

	_, err := NormalizeMAC("not-a-mac")
	require.ErrorIs(t, err, ErrInvalidMAC)
}

func TestMemory_MACIsConfigured(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, err := m.MACIsConfigured(ctx, "00:11:22:33:44:55")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetInterface("r1", "eth0", "00:11:22:33:44:55"))

	ok, err = m.MACIsConfigured(ctx, "00-11-22-33-44-55")
	require.NoError(t, err)
	assert.True(t, ok, "comparison ignores separators and case")

	m.RemoveInterface("r1", "eth0")

	ok, err = m.MACIsConfigured(ctx, "00:11:22:33:44:55")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_IPIsConfigured(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.SetAddress("r1", "eth0", "10.0.0.5/24"))
	require.NoError(t, m.SetAddress("r1", "eth1", "192.168.1.1"))

	ip := netip.MustParseAddr("10.0.0.5")

	ok, err := m.IPIsConfigured(ctx, ip, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	inside := netip.MustParsePrefix("10.0.0.0/16")
	ok, err = m.IPIsConfigured(ctx, ip, &inside)
	require.NoError(t, err)
	assert.True(t, ok)

	outside := netip.MustParsePrefix("172.16.0.0/12")
	ok, err = m.IPIsConfigured(ctx, ip, &outside)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.IPIsConfigured(ctx, netip.MustParseAddr("::ffff:192.168.1.1"), nil)
	require.NoError(t, err)
	assert.True(t, ok, "v4-mapped addresses match their v4 form")

	require.NoError(t, m.RemoveAddress("r1", "eth0", "10.0.0.5"))

	ok, err = m.IPIsConfigured(ctx, ip, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	require.ErrorIs(t, m.SetAddress("r1", "eth0", "10.0.0/33"), ErrInvalidAddress)
}

func TestMemory_SyncController(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.SetInterface("r1", "old0", "aa:aa:aa:aa:aa:aa"))
	require.NoError(t, m.SetInterface("r2", "eth0", "bb:bb:bb:bb:bb:bb"))

	err := m.SyncController(ctx, "r1", []models.ConfiguredInterface{
		{Name: "eth0", MACAddress: "cc:cc:cc:cc:cc:cc", Addresses: []string{"10.1.0.1/24"}},
	})
	require.NoError(t, err)

	ok, _ := m.MACIsConfigured(ctx, "aa:aa:aa:aa:aa:aa")
	assert.False(t, ok, "interfaces missing from the sync are dropped")

	ok, _ = m.MACIsConfigured(ctx, "bb:bb:bb:bb:bb:bb")
	assert.True(t, ok, "other controllers are untouched")

	ok, _ = m.MACIsConfigured(ctx, "cc:cc:cc:cc:cc:cc")
	assert.True(t, ok)

	ok, _ = m.IPIsConfigured(ctx, netip.MustParseAddr("10.1.0.1"), nil)
	assert.True(t, ok)

	err = m.SyncController(ctx, "r1", []models.ConfiguredInterface{{Name: "eth0", MACAddress: "zz"}})
	require.ErrorIs(t, err, ErrInvalidMAC)

	ok, _ = m.MACIsConfigured(ctx, "cc:cc:cc:cc:cc:cc")
	assert.True(t, ok, "failed sync leaves previous state")
}

func TestParseAssigned(t *testing.T) {
	for in, want := range map[string]string{
		"10.0.0.5/24":         "10.0.0.5/24",
		" 10.0.0.5 ":          "10.0.0.5/32",
		"::ffff:10.0.0.5/120": "10.0.0.5/24",
		"::ffff:10.0.0.5":     "10.0.0.5/32",
		"2001:db8::1":         "2001:db8::1/128",
	} {
		p, err := ParseAssigned(in)
		require.NoError(t, err, in)
		assert.Equal(t, netip.MustParsePrefix(want), p, in)
	}

	for _, bad := range []string{"", "10.0.0.5/33", "rack-1"} {
		_, err := ParseAssigned(bad)
		require.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
}
