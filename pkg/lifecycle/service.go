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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/rackradar/pkg/logger"
)

const defaultStopTimeout = 10 * time.Second

// Service is a long-running component. Start blocks until the context is
// cancelled or Stop is called.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NamedService pairs a service with the name used in log lines.
type NamedService struct {
	Name    string
	Service Service
}

// Run starts every service, waits for SIGINT/SIGTERM, the parent context, or
// the first service failure, then stops all services in reverse order.
func Run(ctx context.Context, log logger.Logger, services ...NamedService) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	for _, svc := range services {
		g.Go(func() error {
			log.Info().Str("service", svc.Name).Msg("Starting service")

			if err := svc.Service.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", svc.Name, err)
			}

			return nil
		})
	}

	<-gctx.Done()

	log.Info().Msg("Shutting down services")

	stopCtx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
	defer cancel()

	var stopErrs []error

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Service.Stop(stopCtx); err != nil {
			log.Error().Err(err).Str("service", services[i].Name).Msg("Error stopping service")
			stopErrs = append(stopErrs, err)
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return errors.Join(stopErrs...)
}
