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

// Package core wires the rackradar core service: controller registry,
// scan orchestration, discovery storage, observation ingest and the API.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/carverauto/rackradar/pkg/consumers/observations"
	"github.com/carverauto/rackradar/pkg/core/api"
	"github.com/carverauto/rackradar/pkg/core/auth"
	"github.com/carverauto/rackradar/pkg/db"
	"github.com/carverauto/rackradar/pkg/discovery"
	"github.com/carverauto/rackradar/pkg/dispatch"
	rrgrpc "github.com/carverauto/rackradar/pkg/grpc"
	"github.com/carverauto/rackradar/pkg/inventory"
	"github.com/carverauto/rackradar/pkg/lifecycle"
	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/metrics"
	"github.com/carverauto/rackradar/pkg/models"
	"github.com/carverauto/rackradar/pkg/rackrpc"
	"github.com/carverauto/rackradar/pkg/registry"
	"github.com/carverauto/rackradar/pkg/scan"
	"github.com/carverauto/rackradar/pkg/version"
)

const reapDivisor = 3

type directory interface {
	inventory.Directory
	InterfaceSyncer
}

// Server is the core service.
type Server struct {
	config *Config
	logger logger.Logger

	registry  *registry.ControllerRegistry
	pool      *rackrpc.Pool
	scans     *scan.Service
	store     discovery.Store
	directory directory
	dbPool    *pgxpool.Pool

	grpcServer *rrgrpc.Server
	apiServer  *api.APIServer
	ingest     *observations.Service
	reaper     *StaleControllerReaper

	metricsShutdown func(context.Context) error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ lifecycle.Service = (*Server)(nil)

// NewServer builds the core from cfg. Nothing listens until Start.
func NewServer(ctx context.Context, cfg *Config, log logger.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid core configuration: %w", err)
	}

	s := &Server{config: cfg, logger: log}

	if err := s.initMetrics(ctx); err != nil {
		return nil, err
	}

	rec, err := metrics.NewRecorder(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics recorder: %w", err)
	}

	s.registry = registry.New(log)

	for _, seed := range cfg.Controllers {
		if err := s.registry.Register(models.Controller{
			SystemID:  seed.SystemID,
			Hostname:  seed.Hostname,
			Address:   seed.Address,
			Reachable: true,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.initStorage(ctx, rec); err != nil {
		s.closeResources(ctx)

		return nil, err
	}

	s.pool = rackrpc.NewPool(s.registry, cfg.Security, log)
	dispatcher := dispatch.New(s.pool, int64(cfg.MaxConcurrentRPCs), log)
	s.scans = scan.NewService(s.registry, dispatcher, log,
		scan.WithTimeout(time.Duration(cfg.ScanTimeout)),
		scan.WithRecorder(rec))

	if err := s.initGRPC(ctx); err != nil {
		s.closeResources(ctx)

		return nil, err
	}

	if cfg.NATS != nil && cfg.NATS.URL != "" {
		s.ingest, err = observations.NewService(cfg.NATS, s.store, log)
		if err != nil {
			s.closeResources(ctx)

			return nil, err
		}
	}

	authenticator, err := auth.NewAuthenticator(cfg.Auth)
	if err != nil {
		s.closeResources(ctx)

		return nil, err
	}

	if !authenticator.Enabled() {
		log.Warn().Msg("API authentication is disabled, every caller is treated as an administrator")
	}

	s.apiServer = api.NewAPIServer(cfg.CORS, log,
		api.WithDiscoveryStore(s.store),
		api.WithScanner(s.scans),
		api.WithControllers(s.registry),
		api.WithAuthenticator(authenticator))

	timeout := time.Duration(cfg.HeartbeatTimeout)
	s.reaper = NewStaleControllerReaper(s.registry, log, timeout/reapDivisor, timeout)

	return s, nil
}

func (s *Server) initMetrics(ctx context.Context) error {
	shutdown, err := metrics.Setup(ctx, s.config.Metrics, version.GetVersion())
	if errors.Is(err, metrics.ErrDisabled) {
		s.logger.Debug().Msg("OTLP metrics export disabled")

		return nil
	}

	if err != nil {
		return err
	}

	s.metricsShutdown = shutdown

	return nil
}

// initStorage picks the Postgres store when a database is configured and
// the in-memory store otherwise.
func (s *Server) initStorage(ctx context.Context, rec discovery.Recorder) error {
	if s.config.Database == nil {
		dir := inventory.NewMemory()
		s.directory = dir
		s.store = discovery.Instrument(discovery.NewMemoryStore(dir), rec)

		s.logger.Info().Msg("Using in-memory discovery store")

		return nil
	}

	pool, err := db.NewPool(ctx, s.config.Database, s.logger)
	if err != nil {
		return err
	}

	s.dbPool = pool

	if err := db.RunMigrations(ctx, pool, s.logger); err != nil {
		return err
	}

	s.directory = db.NewDirectory(pool)
	s.store = discovery.Instrument(db.NewDiscoveryStore(pool), rec)

	return nil
}

func (s *Server) initGRPC(ctx context.Context) error {
	provider, err := rrgrpc.NewSecurityProvider(s.config.Security, s.logger)
	if err != nil {
		return err
	}

	creds, err := provider.GetServerCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to get server credentials: %w", err)
	}

	s.grpcServer = rrgrpc.NewServer(s.config.GRPCListenAddr, s.logger, rrgrpc.WithServerOptions(creds))
	rackrpc.RegisterControllerRegistryServer(s.grpcServer,
		NewRegistryService(s.registry, s.directory, s.store, s.logger))

	return nil
}

// Start serves until ctx is cancelled or a listener fails.
func (s *Server) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.ingest != nil {
		if err := s.ingest.Start(runCtx); err != nil {
			return fmt.Errorf("failed to start observation ingest: %w", err)
		}
	}

	errCh := make(chan error, 2)

	s.wg.Add(3)

	go func() {
		defer s.wg.Done()

		errCh <- s.grpcServer.Start(runCtx)
	}()

	go func() {
		defer s.wg.Done()

		s.logger.Info().Str("addr", s.config.ListenAddr).Msg("HTTP API listening")
		errCh <- s.apiServer.Start(s.config.ListenAddr)
	}()

	go func() {
		defer s.wg.Done()

		s.reaper.Start(runCtx)
	}()

	s.logger.Info().
		Str("version", version.GetFullVersion()).
		Int("controllers", len(s.config.Controllers)).
		Msg("rackradar core started")

	select {
	case <-runCtx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return err
		}

		<-runCtx.Done()

		return nil
	}
}

func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	var errs []error

	if err := s.apiServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http api: %w", err))
	}

	if err := s.grpcServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("grpc: %w", err))
	}

	if s.ingest != nil {
		if err := s.ingest.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("observation ingest: %w", err))
		}
	}

	s.wg.Wait()

	s.closeResources(ctx)

	return errors.Join(errs...)
}

func (s *Server) closeResources(ctx context.Context) {
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close controller connections")
		}
	}

	if s.dbPool != nil {
		s.dbPool.Close()
	}

	if s.metricsShutdown != nil {
		if err := s.metricsShutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to shut down metrics exporter")
		}
	}
}
