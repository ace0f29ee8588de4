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

package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/rackradar/pkg/models"
)

func ids(cs []models.Controller) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.SystemID)
	}

	return out
}

func TestRegistry_ListAllAndReachable(t *testing.T) {
	r := New(nil)

	for _, c := range []models.Controller{
		{SystemID: "r3", Reachable: true},
		{SystemID: "r1", Reachable: true},
		{SystemID: "r4", Reachable: false},
		{SystemID: "r2", Reachable: true},
	} {
		require.NoError(t, r.Register(c))
	}

	all, err := r.ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, ids(all))

	reachable, err := r.ListReachable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(reachable))
}

func TestRegistry_MarkReachability(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(models.Controller{SystemID: "r1", Reachable: true}))

	require.NoError(t, r.MarkUnreachable("r1"))
	assert.False(t, r.IsReachable("r1"))

	require.NoError(t, r.MarkReachable("r1"))
	assert.True(t, r.IsReachable("r1"))

	require.ErrorIs(t, r.MarkReachable("nope"), ErrUnknownController)
	require.ErrorIs(t, r.MarkUnreachable("nope"), ErrUnknownController)

	all, _ := r.ListAll(context.Background())
	assert.Len(t, all, 1, "marking never removes controllers")
}

func TestRegistry_RegisterKeepsReachability(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(models.Controller{SystemID: "r1", Hostname: "old", Reachable: true}))
	require.NoError(t, r.Register(models.Controller{SystemID: "r1", Hostname: "new"}))

	c, ok := r.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "new", c.Hostname)
	assert.True(t, c.Reachable)

	require.Error(t, r.Register(models.Controller{SystemID: "  "}))
}

func TestRegistry_HeartbeatAndReap(t *testing.T) {
	r := New(nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Heartbeat("r1", "rack-1", "10.0.0.1:50061", base))
	require.NoError(t, r.Heartbeat("r2", "rack-2", "10.0.0.2:50061", base.Add(time.Minute)))
	require.NoError(t, r.Register(models.Controller{SystemID: "static", Reachable: true}))

	c, ok := r.Get("r1")
	require.True(t, ok)
	assert.True(t, c.Reachable)
	assert.Equal(t, "rack-1", c.Hostname)
	assert.Equal(t, base, c.LastHeartbeat)

	// Out-of-order heartbeat does not move the timestamp back.
	require.NoError(t, r.Heartbeat("r1", "", "", base.Add(-time.Hour)))
	c, _ = r.Get("r1")
	assert.Equal(t, base, c.LastHeartbeat)
	assert.Equal(t, "rack-1", c.Hostname)

	reaped := r.ReapStale(base.Add(90*time.Second), time.Minute)
	assert.Equal(t, []string{"r1"}, reaped)
	assert.False(t, r.IsReachable("r1"))
	assert.True(t, r.IsReachable("r2"))
	assert.True(t, r.IsReachable("static"), "controllers without heartbeats are not reaped")

	require.NoError(t, r.Heartbeat("r1", "", "", base.Add(2*time.Minute)))
	assert.True(t, r.IsReachable("r1"))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New(nil)

	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			id := fmt.Sprintf("r%02d", i)
			_ = r.Heartbeat(id, "", "", time.Now())
			_ = r.MarkUnreachable(id)
			_, _ = r.ListAll(context.Background())
		}(i)
	}

	wg.Wait()

	all, err := r.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
