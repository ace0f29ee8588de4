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

package core

import (
	"context"
	"time"

	"github.com/carverauto/rackradar/pkg/logger"
)

// StaleReaper is the part of the registry the reaper drives.
type StaleReaper interface {
	ReapStale(now time.Time, timeout time.Duration) []string
}

// StaleControllerReaper marks controllers unreachable once their heartbeats
// stop. Controllers are never removed.
type StaleControllerReaper struct {
	registry StaleReaper
	logger   logger.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func NewStaleControllerReaper(reg StaleReaper, log logger.Logger, interval, timeout time.Duration) *StaleControllerReaper {
	return &StaleControllerReaper{
		registry: reg,
		logger:   log,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Start runs the reaper until ctx is cancelled.
func (r *StaleControllerReaper) Start(ctx context.Context) {
	r.logger.Info().
		Str("interval", r.interval.String()).
		Str("timeout", r.timeout.String()).
		Msg("Starting stale controller reaper")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Stale controller reaper stopping")
			return
		case <-ticker.C:
			r.reap()
		}
	}
}

func (r *StaleControllerReaper) reap() []string {
	reaped := r.registry.ReapStale(r.now(), r.timeout)
	if len(reaped) > 0 {
		r.logger.Info().Strs("controllers", reaped).Msg("Marked stale controllers unreachable")
	}

	return reaped
}
