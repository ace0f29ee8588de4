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

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/carverauto/rackradar/pkg/discovery"
	"github.com/carverauto/rackradar/pkg/models"
	"github.com/carverauto/rackradar/pkg/rackrpc"
)

const (
	opClear = "clear"
	opScan  = "scan"
)

var (
	errScopeRequired   = errors.New("exactly one of all, mdns or neighbours must be true")
	errUnknownOp       = errors.New("unknown op")
	errScanUnavailable = errors.New("scan service unavailable")
)

// handleListDiscoveries serves GET /discovery/ with an optional op filter.
func (s *APIServer) handleListDiscoveries(w http.ResponseWriter, r *http.Request) {
	filter, err := discovery.ParseFilter(r.URL.Query().Get("op"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := s.store.Query(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Str("op", string(filter)).Msg("discovery query failed")
		writeError(w, "failed to query discoveries", http.StatusInternalServerError)

		return
	}

	out := make([]DiscoveryResponse, 0, len(records))
	for _, d := range records {
		out = append(out, s.toDiscoveryResponse(d))
	}

	writeJSONResponse(w, s.logger, http.StatusOK, out)
}

// handleGetDiscovery serves GET /discovery/{id}, where id is a discovery id
// or a specifier such as ip:10.0.0.1.
func (s *APIServer) handleGetDiscovery(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]

	spec, err := discovery.ParseSpecifier(raw)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := s.store.GetBySpecifier(r.Context(), spec)
	if errors.Is(err, discovery.ErrNotFound) {
		writeError(w, "no discovery matches "+raw, http.StatusNotFound)
		return
	}

	if err != nil {
		s.logger.Error().Err(err).Str("specifier", spec.String()).Msg("discovery lookup failed")
		writeError(w, "failed to look up discovery", http.StatusInternalServerError)

		return
	}

	writeJSONResponse(w, s.logger, http.StatusOK, s.toDiscoveryResponse(d))
}

// handleDiscoveryAction serves POST /discovery/ for op=clear and op=scan.
// Callers have already passed RequireAdmin.
func (s *APIServer) handleDiscoveryAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch op := r.Form.Get("op"); op {
	case opClear:
		s.handleClear(w, r)
	case opScan:
		s.handleScan(w, r)
	default:
		writeError(w, errUnknownOp.Error()+": "+strconv.Quote(op), http.StatusBadRequest)
	}
}

func (s *APIServer) handleClear(w http.ResponseWriter, r *http.Request) {
	scope, err := clearScope(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	removed, err := s.store.Clear(r.Context(), scope)
	if err != nil {
		s.logger.Error().Err(err).Str("scope", string(scope)).Msg("discovery clear failed")
		writeError(w, "failed to clear discoveries", http.StatusInternalServerError)

		return
	}

	s.logger.Info().Str("scope", string(scope)).Int("removed", removed).Msg("discoveries cleared")

	w.WriteHeader(http.StatusNoContent)
}

// clearScope requires exactly one of the scope flags to be true.
func clearScope(r *http.Request) (discovery.Scope, error) {
	var (
		scope discovery.Scope
		set   int
	)

	for _, candidate := range []discovery.Scope{discovery.ScopeAll, discovery.ScopeMDNS, discovery.ScopeNeighbours} {
		if formBool(r, string(candidate)) {
			scope = candidate
			set++
		}
	}

	if set != 1 {
		return "", errScopeRequired
	}

	return scope, nil
}

func (s *APIServer) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeError(w, errScanUnavailable.Error(), http.StatusServiceUnavailable)
		return
	}

	req := &rackrpc.ScanAllNetworksRequest{
		Force: formBool(r, "force"),
		Slow:  formBool(r, "slow"),
		CIDRs: r.Form["cidr"],
	}

	if threads := r.Form.Get("threads"); threads != "" {
		n, err := strconv.Atoi(threads)
		if err != nil || n < 0 {
			writeError(w, "threads must be a non-negative integer", http.StatusBadRequest)
			return
		}

		req.Threads = n
	}

	report, err := s.scanner.Scan(r.Context(), req)
	if err != nil {
		s.logger.Error().Err(err).Msg("scan request failed")
		writeError(w, "failed to start scan", http.StatusInternalServerError)

		return
	}

	writeJSONResponse(w, s.logger, http.StatusOK, report)
}

func formBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.Form.Get(key)))
	return err == nil && v
}

func (s *APIServer) toDiscoveryResponse(d *models.Discovery) DiscoveryResponse {
	observer := Observer{
		SystemID:      d.Interface.SystemID,
		InterfaceName: d.Interface.Name,
		InterfaceID:   d.Interface.ID,
	}

	if s.controllers != nil {
		if c, ok := s.controllers.Get(d.Interface.SystemID); ok {
			observer.Hostname = c.Hostname
		}
	}

	return DiscoveryResponse{
		DiscoveryID: d.DiscoveryID,
		IP:          d.IP,
		MACAddress:  d.MACAddress,
		Hostname:    d.Hostname,
		FirstSeen:   d.FirstSeen,
		LastSeen:    d.LastSeen,
		Observer:    observer,
		ResourceURI: apiPrefix + "/discovery/" + d.DiscoveryID + "/",
	}
}
