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
	"sync"
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/rackrpc"
)

// ControllerService serves rackradar.v1.RackController. At most one scan runs
// at a time; scans outlive the RPC that started them.
type ControllerService struct {
	rackrpc.UnimplementedRackControllerServer

	scanner Scanner
	logger  logger.Logger

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ rackrpc.RackControllerServer = (*ControllerService)(nil)

func NewControllerService(scanner Scanner, log logger.Logger) *ControllerService {
	ctx, cancel := context.WithCancel(context.Background())

	return &ControllerService{
		scanner: scanner,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ScanAllNetworks starts a background scan and returns immediately. A second
// request while one is running fails with AlreadyExists. When every network
// was scanned recently the request is accepted without starting a scan.
func (c *ControllerService) ScanAllNetworks(
	_ context.Context, req *rackrpc.ScanAllNetworksRequest,
) (*rackrpc.ScanAllNetworksResponse, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, status.Error(codes.AlreadyExists, "network scan already in progress")
	}

	networks, err := c.scanner.Networks(req)
	if err != nil {
		c.running.Store(false)

		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if len(networks) == 0 {
		c.running.Store(false)
		c.logger.Info().Bool("force", req.Force).Msg("no networks due for scanning")

		return &rackrpc.ScanAllNetworksResponse{Started: false, CIDRs: []string{}}, nil
	}

	cidrs := make([]string, 0, len(networks))
	for _, p := range networks {
		cidrs = append(cidrs, p.String())
	}

	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		defer c.running.Store(false)

		c.logger.Info().Strs("cidrs", cidrs).Bool("slow", req.Slow).Msg("network scan started")

		if err := c.scanner.Scan(c.ctx, req, networks); err != nil {
			c.logger.Error().Err(err).Msg("network scan failed")
		}
	}()

	return &rackrpc.ScanAllNetworksResponse{Started: true, CIDRs: cidrs}, nil
}

// Scanning reports whether a scan is running.
func (c *ControllerService) Scanning() bool {
	return c.running.Load()
}

// Close cancels any running scan and waits for it to return.
func (c *ControllerService) Close() {
	c.cancel()
	c.wg.Wait()
}
