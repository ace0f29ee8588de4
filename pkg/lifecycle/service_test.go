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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/rackradar/pkg/logger"
)

type blockingService struct {
	started atomic.Bool
	stopped atomic.Bool
	done    chan struct{}
}

func newBlockingService() *blockingService {
	return &blockingService{done: make(chan struct{})}
}

func (b *blockingService) Start(ctx context.Context) error {
	b.started.Store(true)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return nil
	}
}

func (b *blockingService) Stop(context.Context) error {
	if b.stopped.CompareAndSwap(false, true) {
		close(b.done)
	}

	return nil
}

type failingService struct{}

var errBoom = errors.New("boom")

func (failingService) Start(context.Context) error { return errBoom }
func (failingService) Stop(context.Context) error  { return nil }

func TestRun_StopsAllServicesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	a := newBlockingService()
	b := newBlockingService()

	errCh := make(chan error, 1)

	go func() {
		errCh <- Run(ctx, logger.NewTestLogger(),
			NamedService{Name: "a", Service: a},
			NamedService{Name: "b", Service: b})
	}()

	require.Eventually(t, func() bool { return a.started.Load() && b.started.Load() }, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.True(t, a.stopped.Load())
	assert.True(t, b.stopped.Load())
}

func TestRun_ServiceFailureShutsDownOthers(t *testing.T) {
	a := newBlockingService()

	err := Run(context.Background(), logger.NewTestLogger(),
		NamedService{Name: "a", Service: a},
		NamedService{Name: "bad", Service: failingService{}})

	require.ErrorIs(t, err, errBoom)
	assert.True(t, a.stopped.Load())
}

func TestCreateComponentLogger(t *testing.T) {
	l, err := CreateComponentLogger("core", &logger.Config{Level: "info"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = CreateComponentLogger("core", &logger.Config{Level: "nope"})
	assert.Error(t, err)
}
