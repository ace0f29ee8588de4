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
	"errors"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/carverauto/rackradar/pkg/logger"
)

const workQueueMultiplier = 2

// Dialer opens probe connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// TCPSweeper touches every host in a set with short TCP connects so the
// kernel resolves their link-layer addresses into the neighbour table. A
// refused connection is as good as an accepted one.
type TCPSweeper struct {
	timeout     time.Duration
	concurrency int
	ports       []int
	dialer      Dialer
	logger      logger.Logger
}

func NewTCPSweeper(timeout time.Duration, concurrency int, ports []int, log logger.Logger) *TCPSweeper {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	if concurrency <= 0 {
		concurrency = defaultThreads
	}

	return &TCPSweeper{
		timeout:     timeout,
		concurrency: concurrency,
		ports:       ports,
		dialer:      &net.Dialer{},
		logger:      log,
	}
}

// Sweep probes hosts with at most concurrency dials in flight, returning how
// many answered on any port. It stops early when ctx is cancelled.
func (s *TCPSweeper) Sweep(ctx context.Context, hosts []netip.Addr, concurrency int) int {
	if concurrency <= 0 || concurrency > s.concurrency {
		concurrency = s.concurrency
	}

	if len(hosts) == 0 {
		return 0
	}

	workCh := make(chan netip.Addr, concurrency*workQueueMultiplier)

	var (
		wg    sync.WaitGroup
		alive atomic.Int64
	)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for host := range workCh {
				if s.probe(ctx, host) {
					alive.Add(1)
				}
			}
		}()
	}

feed:
	for _, h := range hosts {
		select {
		case <-ctx.Done():
			break feed
		case workCh <- h:
		}
	}

	close(workCh)
	wg.Wait()

	return int(alive.Load())
}

func (s *TCPSweeper) probe(ctx context.Context, host netip.Addr) bool {
	for _, port := range s.ports {
		if ctx.Err() != nil {
			return false
		}

		probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
		conn, err := s.dialer.DialContext(probeCtx, "tcp", net.JoinHostPort(host.String(), strconv.Itoa(port)))
		cancel()

		if err == nil {
			if cerr := conn.Close(); cerr != nil {
				s.logger.Debug().Err(cerr).Msg("failed to close probe connection")
			}

			return true
		}

		if errors.Is(err, syscall.ECONNREFUSED) {
			return true
		}
	}

	return false
}
