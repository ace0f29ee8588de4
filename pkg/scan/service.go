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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/rackradar/pkg/dispatch"
	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
	"github.com/carverauto/rackradar/pkg/rackrpc"
)

// DefaultTimeout bounds a scan dispatch when none is configured.
const DefaultTimeout = 30 * time.Second

// Registry lists the controllers a scan is sent to and records what a scan
// learns about their reachability.
type Registry interface {
	ListAll(ctx context.Context) ([]models.Controller, error)
	IsReachable(systemID string) bool
	MarkReachable(systemID string) error
	MarkUnreachable(systemID string) error
}

// Dispatcher fans a command out to controllers.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd dispatch.Command, targets []string, timeout time.Duration) *dispatch.RawResults
}

// Recorder receives scan metrics.
type Recorder interface {
	RecordScan(ctx context.Context, report *models.ScanReport, elapsed time.Duration)
}

// Service is the single entry point for fleet-wide scans.
type Service struct {
	registry   Registry
	dispatcher Dispatcher
	timeout    time.Duration
	recorder   Recorder
	logger     logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout sets the shared deadline for each dispatch.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// NewService creates a scan service.
func NewService(reg Registry, d Dispatcher, log logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewTestLogger()
	}

	s := &Service{
		registry:   reg,
		dispatcher: d,
		timeout:    DefaultTimeout,
		logger:     log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ScanAll asks every registered controller to scan all of its networks. It
// returns an error only when the registry cannot be read; every
// per-controller failure is reported in the returned buckets instead.
func (s *Service) ScanAll(ctx context.Context) (*models.ScanReport, error) {
	return s.Scan(ctx, &rackrpc.ScanAllNetworksRequest{})
}

// Scan is ScanAll with explicit request options.
func (s *Service) Scan(ctx context.Context, cmd dispatch.Command) (*models.ScanReport, error) {
	controllers, err := s.registry.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rack controllers: %w", err)
	}

	targets := make([]string, 0, len(controllers))
	for _, c := range controllers {
		targets = append(targets, c.SystemID)
	}

	start := time.Now()
	raw := s.dispatcher.Dispatch(ctx, cmd, targets, s.timeout)
	elapsed := time.Since(start)

	s.updateReachability(raw)

	report := Interpret(raw)

	s.logger.Info().
		Int("controllers", len(targets)).
		Int("started", len(report.ScanStartedOn)).
		Int("already_in_progress", len(report.ScanAlreadyInProgressOn)).
		Int("failed_to_connect", len(report.FailedToConnectTo)).
		Int("timed_out", len(report.RPCCallTimedOutOn)).
		Dur("elapsed", elapsed).
		Msg(report.Result)

	if s.recorder != nil {
		s.recorder.RecordScan(ctx, report, elapsed)
	}

	return report, nil
}

// updateReachability marks controllers that answered as reachable and those
// that could not be contacted as unreachable. Heartbeats restore the latter.
func (s *Service) updateReachability(raw *dispatch.RawResults) {
	for _, id := range raw.Unavailable {
		if !s.registry.IsReachable(id) {
			continue
		}

		if err := s.registry.MarkUnreachable(id); err != nil {
			s.logger.Debug().Err(err).Str("controller_id", id).Msg("failed to mark controller unreachable")
		}
	}

	answered := make([]string, 0, len(raw.Success)+len(raw.Failed))
	answered = append(answered, raw.Success...)

	for _, id := range raw.Failed {
		if errors.Is(raw.Errors[id], dispatch.ErrAlreadyRunning) {
			answered = append(answered, id)
		}
	}

	for _, id := range answered {
		if err := s.registry.MarkReachable(id); err != nil {
			s.logger.Debug().Err(err).Str("controller_id", id).Msg("failed to mark controller reachable")
		}
	}
}
