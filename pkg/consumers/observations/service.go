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

package observations

import (
	"context"
	"errors"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/rackradar/pkg/discovery"
	"github.com/carverauto/rackradar/pkg/lifecycle"
	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
	"github.com/carverauto/rackradar/pkg/natsutil"
)

var errNATSConfigRequired = errors.New("nats configuration is required")

// Service runs the observation consumer as a lifecycle.Service.
type Service struct {
	cfg       models.NATSConfig
	processor *Processor
	logger    logger.Logger

	nc     *nats.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ lifecycle.Service = (*Service)(nil)

func NewService(cfg *models.NATSConfig, store discovery.Store, log logger.Logger) (*Service, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errNATSConfigRequired
	}

	c := *cfg
	natsutil.ApplyDefaults(&c)

	return &Service{
		cfg:       c,
		processor: NewProcessor(store, log),
		logger:    log,
	}, nil
}

func (s *Service) Start(ctx context.Context) error {
	nc, js, err := natsutil.Connect(&s.cfg, "rackradar-core-observations", s.logger)
	if err != nil {
		return err
	}

	if _, err := natsutil.EnsureStream(ctx, js, &s.cfg); err != nil {
		nc.Close()

		return err
	}

	consumer, err := NewConsumer(ctx, js, s.cfg.StreamName, s.cfg.ConsumerName, s.cfg.Subject, s.cfg.MaxDeliver, s.logger)
	if err != nil {
		nc.Close()

		return err
	}

	s.nc = nc

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if err := consumer.ProcessMessages(runCtx, s.processor); err != nil {
			s.logger.Error().Err(err).Msg("observation consumer stopped")
		}
	}()

	s.logger.Info().Str("stream", s.cfg.StreamName).Str("subject", s.cfg.Subject).Msg("observation consumer started")

	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	if s.nc != nil {
		s.nc.Close()
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	s.logger.Info().Msg("observation consumer stopped")

	return nil
}
