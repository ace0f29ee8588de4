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

// Package scan triggers network scans across the rack controller fleet and
// summarises the per-controller outcomes.
package scan

import (
	"fmt"

	"github.com/carverauto/rackradar/pkg/dispatch"
	"github.com/carverauto/rackradar/pkg/models"
)

const (
	msgNoConnections = "Unable to initiate network scanning on any rack controller; " +
		"no connections could be made."
	msgLostConnectivity = "Scanning could not be started on %d rack controller(s) due to a loss of RPC connectivity."
	msgInProgress       = "Scanning is in-progress on the rack network(s)."
)

// Interpret partitions dispatcher output into report buckets and picks the
// summary message. It does not modify raw and always returns non-nil slices
// so the buckets serialise as empty lists.
func Interpret(raw *dispatch.RawResults) *models.ScanReport {
	if raw == nil {
		raw = &dispatch.RawResults{}
	}

	return &models.ScanReport{
		Result:                  narrate(raw),
		ScanStartedOn:           clone(raw.Success),
		ScanAlreadyInProgressOn: clone(raw.Failed),
		ScanAttemptedOn:         clone(raw.Available),
		FailedToConnectTo:       clone(raw.Unavailable),
		RPCCallTimedOutOn:       clone(raw.Timeout),
	}
}

// narrate picks one message; the first matching condition wins.
func narrate(raw *dispatch.RawResults) string {
	switch {
	case len(raw.Available) == 0:
		return msgNoConnections
	case len(raw.Unavailable) > 0:
		return fmt.Sprintf(msgLostConnectivity, len(raw.Unavailable))
	default:
		return msgInProgress
	}
}

func clone(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)

	return out
}
