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
	"net/http"
	"strconv"
)

// handleListControllers serves GET /controllers/. With reachable=true only
// controllers currently marked reachable are listed.
func (s *APIServer) handleListControllers(w http.ResponseWriter, r *http.Request) {
	reachableOnly := false

	if v := r.URL.Query().Get("reachable"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, "invalid reachable value: "+strconv.Quote(v), http.StatusBadRequest)
			return
		}

		reachableOnly = b
	}

	if s.controllers == nil {
		writeJSONResponse(w, s.logger, http.StatusOK, []ControllerResponse{})
		return
	}

	list := s.controllers.ListAll
	if reachableOnly {
		list = s.controllers.ListReachable
	}

	controllers, err := list(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list controllers")
		writeError(w, "failed to list controllers", http.StatusInternalServerError)

		return
	}

	out := make([]ControllerResponse, 0, len(controllers))

	for i := range controllers {
		c := &controllers[i]
		resp := ControllerResponse{
			SystemID:    c.SystemID,
			Hostname:    c.Hostname,
			Address:     c.Address,
			Reachable:   c.Reachable,
			ResourceURI: apiPrefix + "/controllers/" + c.SystemID + "/",
		}

		if !c.LastHeartbeat.IsZero() {
			hb := c.LastHeartbeat
			resp.LastHeartbeat = &hb
		}

		out = append(out, resp)
	}

	writeJSONResponse(w, s.logger, http.StatusOK, out)
}
