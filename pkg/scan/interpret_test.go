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

package scan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/rackradar/pkg/dispatch"
	"github.com/carverauto/rackradar/pkg/models"
)

func TestInterpret_MessagePrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  dispatch.RawResults
		want string
	}{
		{
			name: "no controllers at all",
			raw:  dispatch.RawResults{},
			want: "Unable to initiate network scanning on any rack controller; no connections could be made.",
		},
		{
			name: "all unavailable",
			raw:  dispatch.RawResults{Unavailable: []string{"r1", "r2"}},
			want: "Unable to initiate network scanning on any rack controller; no connections could be made.",
		},
		{
			name: "some unavailable",
			raw: dispatch.RawResults{
				Available:   []string{"x"},
				Success:     []string{"x"},
				Unavailable: []string{"y", "z"},
			},
			want: "Scanning could not be started on 2 rack controller(s) due to a loss of RPC connectivity.",
		},
		{
			name: "connectivity loss wins over in-progress",
			raw: dispatch.RawResults{
				Available:   []string{"x"},
				Failed:      []string{"x"},
				Unavailable: []string{"y"},
			},
			want: "Scanning could not be started on 1 rack controller(s) due to a loss of RPC connectivity.",
		},
		{
			name: "all reachable",
			raw:  dispatch.RawResults{Available: []string{"x"}, Success: []string{"x"}},
			want: "Scanning is in-progress on the rack network(s).",
		},
		{
			name: "timeouts alongside successes",
			raw: dispatch.RawResults{
				Available: []string{"x", "y"},
				Success:   []string{"x"},
				Timeout:   []string{"y"},
			},
			want: "Scanning is in-progress on the rack network(s).",
		},
		{
			name: "everything timed out",
			raw:  dispatch.RawResults{Available: []string{"x"}, Timeout: []string{"x"}},
			want: "Scanning is in-progress on the rack network(s).",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpret(&tt.raw).Result)
		})
	}
}

func TestInterpret_FleetScenario(t *testing.T) {
	raw := &dispatch.RawResults{
		Available:   []string{"r1", "r2", "r3", "r5"},
		Unavailable: []string{"r4"},
		Success:     []string{"r1", "r2"},
		Failed:      []string{"r3"},
		Timeout:     []string{"r5"},
	}

	report := Interpret(raw)

	assert.Equal(t, []string{"r1", "r2"}, report.ScanStartedOn)
	assert.Equal(t, []string{"r3"}, report.ScanAlreadyInProgressOn)
	assert.Equal(t, []string{"r1", "r2", "r3", "r5"}, report.ScanAttemptedOn)
	assert.Equal(t, []string{"r4"}, report.FailedToConnectTo)
	assert.Equal(t, []string{"r5"}, report.RPCCallTimedOutOn)
	assert.Equal(t, "Scanning could not be started on 1 rack controller(s) due to a loss of RPC connectivity.", report.Result)

	// attempted and failed_to_connect partition the fleet.
	fleet := map[string]int{}
	for _, id := range append(append([]string{}, report.ScanAttemptedOn...), report.FailedToConnectTo...) {
		fleet[id]++
	}

	assert.Len(t, fleet, 5)

	for id, n := range fleet {
		assert.Equal(t, 1, n, id)
	}

	outcomes := report.Outcomes()
	assert.Equal(t, models.ScanStarted, outcomes["r1"])
	assert.Equal(t, models.ScanAlreadyInProgress, outcomes["r3"])
	assert.Equal(t, models.ScanUnreachable, outcomes["r4"])
	assert.Equal(t, models.ScanTimedOut, outcomes["r5"])
}

func TestInterpret_PureAndDeterministic(t *testing.T) {
	raw := &dispatch.RawResults{
		Available:   []string{"b", "a"},
		Unavailable: []string{"c"},
		Success:     []string{"b"},
		Failed:      []string{"a"},
	}

	first := Interpret(raw)
	second := Interpret(raw)

	assert.Equal(t, first, second)

	first.ScanStartedOn[0] = "mutated"
	assert.Equal(t, "b", raw.Success[0], "report must not alias raw results")
	assert.Equal(t, []string{"b", "a"}, second.ScanAttemptedOn, "input order is preserved, not sorted")
}

func TestInterpret_EmptyBucketsSerializeAsLists(t *testing.T) {
	report := Interpret(nil)

	b, err := json.Marshal(report)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "null")

	var decoded models.ScanReport
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, *report, decoded)
}
