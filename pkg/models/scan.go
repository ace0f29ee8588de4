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

// ScanOutcome is the per-controller result of a single scan request.
type ScanOutcome string

const (
	ScanStarted           ScanOutcome = "started"
	ScanAlreadyInProgress ScanOutcome = "already-in-progress"
	ScanUnreachable       ScanOutcome = "unreachable"
	ScanTimedOut          ScanOutcome = "timed-out"
)

// ScanReport is the aggregate answer to a scan-all request. Every list holds
// controller system IDs in dispatch order.
type ScanReport struct {
	Result                  string   `json:"result"`
	ScanStartedOn           []string `json:"scan_started_on"`
	ScanAlreadyInProgressOn []string `json:"scan_already_in_progress_on"`
	ScanAttemptedOn         []string `json:"scan_attempted_on"`
	FailedToConnectTo       []string `json:"failed_to_connect_to"`
	RPCCallTimedOutOn       []string `json:"rpc_call_timed_out_on"`
}

// Outcomes flattens the report into a per-controller outcome map.
func (r *ScanReport) Outcomes() map[string]ScanOutcome {
	out := make(map[string]ScanOutcome, len(r.ScanAttemptedOn)+len(r.FailedToConnectTo))

	for _, id := range r.ScanStartedOn {
		out[id] = ScanStarted
	}

	for _, id := range r.ScanAlreadyInProgressOn {
		out[id] = ScanAlreadyInProgress
	}

	for _, id := range r.RPCCallTimedOutOn {
		out[id] = ScanTimedOut
	}

	for _, id := range r.FailedToConnectTo {
		out[id] = ScanUnreachable
	}

	return out
}
