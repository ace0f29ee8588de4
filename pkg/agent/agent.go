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

// Package agent is the rack controller side of rackradar: it serves the
// scan command, sweeps attached networks and reports what it sees.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	rrgrpc "github.com/carverauto/rackradar/pkg/grpc"
	"github.com/carverauto/rackradar/pkg/lifecycle"
	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/natsutil"
	"github.com/carverauto/rackradar/pkg/rackrpc"
)

// Agent wires the controller service, heartbeat loop and observation
// publisher together.
type Agent struct {
	cfg    *Config
	logger logger.Logger

	server      *rrgrpc.Server
	controller  *ControllerService
	core        *rrgrpc.Client
	heartbeater *Heartbeater
	nc          *nats.Conn

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ lifecycle.Service = (*Agent)(nil)

func New(ctx context.Context, cfg *Config, log logger.Logger) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Agent{cfg: cfg, logger: log}

	var publisher Publisher = logPublisher{logger: log}

	if cfg.NATS != nil && cfg.NATS.URL != "" {
		nc, js, err := natsutil.Connect(cfg.NATS, "rackradar-agent-"+cfg.SystemID, log)
		if err != nil {
			return nil, err
		}

		a.nc = nc
		publisher = NewJetStreamPublisher(js, cfg.SystemID)
	}

	sweeper := NewTCPSweeper(time.Duration(cfg.Scan.ProbeTimeout), cfg.Scan.Threads, cfg.Scan.ProbePorts, log)
	scanner := NewNetworkScanner(cfg.SystemID, cfg.Interfaces, sweeper,
		ProcARPTable{Path: cfg.Scan.ARPPath}, publisher, cfg.Scan.MaxHostsPerCIDR, log)

	a.controller = NewControllerService(scanner, log)

	provider, err := rrgrpc.NewSecurityProvider(cfg.Security, log)
	if err != nil {
		a.closeNATS()

		return nil, err
	}

	creds, err := provider.GetServerCredentials(ctx)
	if err != nil {
		a.closeNATS()

		return nil, fmt.Errorf("failed to get server credentials: %w", err)
	}

	a.server = rrgrpc.NewServer(cfg.ListenAddr, log, rrgrpc.WithServerOptions(creds))
	rackrpc.RegisterRackControllerServer(a.server, a.controller)

	a.core, err = rrgrpc.NewClient(ctx, rrgrpc.ClientConfig{
		Address:  cfg.CoreAddress,
		Security: cfg.Security,
		Logger:   log,
	})
	if err != nil {
		a.closeNATS()

		return nil, err
	}

	a.heartbeater = NewHeartbeater(
		rackrpc.NewControllerRegistryClient(a.core.Conn()),
		&rackrpc.HeartbeatRequest{
			SystemID:   cfg.SystemID,
			Hostname:   cfg.Hostname,
			Address:    cfg.AdvertiseAddr,
			Interfaces: cfg.Interfaces,
		},
		time.Duration(cfg.HeartbeatInterval),
		log,
	)

	return a, nil
}

func (a *Agent) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	a.wg.Add(2)

	go func() {
		defer a.wg.Done()

		if err := a.server.Start(runCtx); err != nil {
			a.logger.Error().Err(err).Msg("controller gRPC server exited")
		}
	}()

	go func() {
		defer a.wg.Done()

		a.heartbeater.Run(runCtx)
	}()

	a.logger.Info().
		Str("system_id", a.cfg.SystemID).
		Str("listen_addr", a.cfg.ListenAddr).
		Str("core_address", a.cfg.CoreAddress).
		Msg("rack agent started")

	return nil
}

func (a *Agent) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	a.controller.Close()

	if err := a.server.Stop(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("failed to stop gRPC server")
	}

	a.wg.Wait()

	if err := a.core.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close core connection")
	}

	a.closeNATS()

	return nil
}

func (a *Agent) closeNATS() {
	if a.nc == nil {
		return
	}

	if err := a.nc.Drain(); err != nil {
		a.nc.Close()
	}
}
