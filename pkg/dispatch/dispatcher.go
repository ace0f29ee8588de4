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

// Package dispatch fans a command out to many controllers concurrently and
// groups the controllers by outcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/carverauto/rackradar/pkg/logger"
)

var errCallPanicked = errors.New("controller call panicked")

// DefaultMaxConcurrent caps in-flight calls when no limit is configured.
const DefaultMaxConcurrent = 64

// RawResults groups dispatch targets by outcome. Each slice keeps the order
// the targets were supplied in.
//
// Every target is in exactly one of Available or Unavailable, and every
// Available target is in exactly one of Success, Failed or Timeout.
type RawResults struct {
	Available   []string
	Unavailable []string
	Success     []string
	Failed      []string
	Timeout     []string
	// Errors holds the cause for every target that did not succeed.
	Errors map[string]error
}

func newRawResults(n int) *RawResults {
	return &RawResults{
		Available:   make([]string, 0, n),
		Unavailable: make([]string, 0),
		Success:     make([]string, 0, n),
		Failed:      make([]string, 0),
		Timeout:     make([]string, 0),
		Errors:      make(map[string]error),
	}
}

// Dispatcher issues commands to controllers through a Connector.
type Dispatcher struct {
	connector Connector
	sem       *semaphore.Weighted
	logger    logger.Logger
}

// New creates a Dispatcher that allows at most maxConcurrent calls in flight
// across all dispatches.
func New(connector Connector, maxConcurrent int64, log logger.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Dispatcher{
		connector: connector,
		sem:       semaphore.NewWeighted(maxConcurrent),
		logger:    log,
	}
}

type callResult struct {
	systemID string
	err      error
}

type connectResult struct {
	caller Caller
	err    error
}

// Dispatch sends cmd to every target and waits until all calls have returned
// or timeout has elapsed since the start of the dispatch, whichever comes
// first. Calls still outstanding at the deadline are abandoned: their context
// is cancelled but Dispatch does not wait for them, and they are reported as
// timed out.
//
// Targets that fail the pre-flight check, or whose call fails with
// ErrUnreachable, are reported as unavailable.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, targets []string, timeout time.Duration) *RawResults {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	targets = dedupe(targets)
	raw := newRawResults(len(targets))

	connected := d.connectAll(callCtx, targets)
	unavailable := make(map[string]struct{})
	reachable := make([]string, 0, len(targets))

	for i, id := range targets {
		if err := connected[i].err; err != nil {
			d.markUnavailable(raw, unavailable, id, cmd, err)

			continue
		}

		reachable = append(reachable, id)
	}

	results := make(chan callResult, len(reachable))

	for i, id := range targets {
		if connected[i].err == nil {
			go d.call(callCtx, id, connected[i].caller, cmd, results)
		}
	}

	got := d.gather(callCtx, results, len(reachable))

	for _, id := range reachable {
		err, done := got[id]
		if !done {
			raw.Available = append(raw.Available, id)
			raw.Timeout = append(raw.Timeout, id)
			raw.Errors[id] = context.DeadlineExceeded

			d.logger.Warn().
				Str("controller_id", id).
				Str("command", cmd.Name()).
				Dur("timeout", timeout).
				Msg("RPC call to rack controller timed out")

			continue
		}

		if errors.Is(err, ErrUnreachable) {
			d.markUnavailable(raw, unavailable, id, cmd, err)

			continue
		}

		raw.Available = append(raw.Available, id)
		d.classify(raw, id, cmd, err)
	}

	for _, id := range targets {
		if _, ok := unavailable[id]; ok {
			raw.Unavailable = append(raw.Unavailable, id)
		}
	}

	return raw
}

// connectAll runs the pre-flight check for every target concurrently. The
// result at index i belongs to targets[i].
func (d *Dispatcher) connectAll(ctx context.Context, targets []string) []connectResult {
	out := make([]connectResult, len(targets))

	var wg sync.WaitGroup

	for i, id := range targets {
		wg.Add(1)

		go func() {
			defer wg.Done()

			out[i] = d.connect(ctx, id)
		}()
	}

	wg.Wait()

	return out
}

func (d *Dispatcher) connect(ctx context.Context, id string) (res connectResult) {
	defer func() {
		if r := recover(); r != nil {
			res = connectResult{err: fmt.Errorf("%w: %v", errCallPanicked, r)}
		}
	}()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return connectResult{err: err}
	}
	defer d.sem.Release(1)

	caller, err := d.connector.Connect(ctx, id)

	return connectResult{caller: caller, err: err}
}

func (d *Dispatcher) markUnavailable(raw *RawResults, unavailable map[string]struct{}, id string, cmd Command, err error) {
	unavailable[id] = struct{}{}
	raw.Errors[id] = err

	d.logger.Warn().
		Str("controller_id", id).
		Str("command", cmd.Name()).
		Err(err).
		Msg("Unable to connect to rack controller")
}

// gather collects results until all expected calls report or ctx is done,
// then picks up anything already buffered without blocking.
func (*Dispatcher) gather(ctx context.Context, results <-chan callResult, expected int) map[string]error {
	got := make(map[string]error, expected)

	for len(got) < expected {
		select {
		case r := <-results:
			got[r.systemID] = r.err
		case <-ctx.Done():
			for {
				select {
				case r := <-results:
					got[r.systemID] = r.err
				default:
					return got
				}
			}
		}
	}

	return got
}

func (d *Dispatcher) call(ctx context.Context, id string, caller Caller, cmd Command, results chan<- callResult) {
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errCallPanicked, r)
		}

		results <- callResult{systemID: id, err: err}
	}()

	if err = d.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer d.sem.Release(1)

	err = caller.Call(ctx, cmd)
}

func (d *Dispatcher) classify(raw *RawResults, id string, cmd Command, err error) {
	switch {
	case err == nil:
		raw.Success = append(raw.Success, id)
	case errors.Is(err, ErrAlreadyRunning):
		raw.Failed = append(raw.Failed, id)
		raw.Errors[id] = err

		d.logger.Info().
			Str("controller_id", id).
			Str("command", cmd.Name()).
			Msg("Command already running on rack controller")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		raw.Timeout = append(raw.Timeout, id)
		raw.Errors[id] = err

		d.logger.Warn().
			Str("controller_id", id).
			Str("command", cmd.Name()).
			Err(err).
			Msg("RPC call to rack controller timed out")
	default:
		raw.Failed = append(raw.Failed, id)
		raw.Errors[id] = err

		d.logger.Error().
			Str("controller_id", id).
			Str("command", cmd.Name()).
			Err(err).
			Msg("RPC call to rack controller failed")
	}
}

func dedupe(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))

	for _, id := range targets {
		if id == "" {
			continue
		}

		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}
