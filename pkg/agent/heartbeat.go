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

package agent

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/rackrpc"
)

// HeartbeatClient is the core's registry service.
type HeartbeatClient interface {
	Heartbeat(ctx context.Context, req *rackrpc.HeartbeatRequest, opts ...grpc.CallOption) (*rackrpc.HeartbeatResponse, error)
}

// Heartbeater reports the controller and its interfaces to the core on an
// interval. Failures are logged and retried on the next tick.
type Heartbeater struct {
	client   HeartbeatClient
	req      *rackrpc.HeartbeatRequest
	interval time.Duration
	logger   logger.Logger
}

func NewHeartbeater(client HeartbeatClient, req *rackrpc.HeartbeatRequest, interval time.Duration, log logger.Logger) *Heartbeater {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}

	return &Heartbeater{client: client, req: req, interval: interval, logger: log}
}

// Run sends a heartbeat immediately and then every interval until ctx ends.
func (h *Heartbeater) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.beat(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *Heartbeater) beat(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, h.interval/2)
	defer cancel()

	resp, err := h.client.Heartbeat(callCtx, h.req)
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Warn().Err(err).Str("system_id", h.req.SystemID).Msg("heartbeat failed")
		}

		return
	}

	if !resp.Accepted {
		h.logger.Warn().Str("system_id", h.req.SystemID).Msg("heartbeat rejected by core")
	}
}
