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

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanReport_JSONRoundTrip(t *testing.T) {
	report := &ScanReport{
		Result:                  "Scanning is in-progress on the rack network(s).",
		ScanStartedOn:           []string{"r1", "r2"},
		ScanAlreadyInProgressOn: []string{"r3"},
		ScanAttemptedOn:         []string{"r1", "r2", "r3", "r5"},
		FailedToConnectTo:       []string{"r4"},
		RPCCallTimedOutOn:       []string{"r5"},
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded ScanReport
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, *report, decoded)
}

func TestScanReport_EmptyBucketsSerializeAsArrays(t *testing.T) {
	report := &ScanReport{
		Result:                  "x",
		ScanStartedOn:           []string{},
		ScanAlreadyInProgressOn: []string{},
		ScanAttemptedOn:         []string{},
		FailedToConnectTo:       []string{},
		RPCCallTimedOutOn:       []string{},
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")

	var decoded ScanReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *report, decoded)
}

func TestScanReport_Outcomes(t *testing.T) {
	report := &ScanReport{
		ScanStartedOn:           []string{"r1"},
		ScanAlreadyInProgressOn: []string{"r2"},
		ScanAttemptedOn:         []string{"r1", "r2", "r3"},
		FailedToConnectTo:       []string{"r4"},
		RPCCallTimedOutOn:       []string{"r3"},
	}

	assert.Equal(t, map[string]ScanOutcome{
		"r1": ScanStarted,
		"r2": ScanAlreadyInProgress,
		"r3": ScanTimedOut,
		"r4": ScanUnreachable,
	}, report.Outcomes())
}
