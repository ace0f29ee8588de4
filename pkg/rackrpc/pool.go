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

package rackrpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/grpc"

	"github.com/carverauto/rackradar/pkg/dispatch"
	rrgrpc "github.com/carverauto/rackradar/pkg/grpc"
	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
)

// ErrNoConnection is returned when a controller cannot be contacted, either
// by the pre-flight check or by a call that fails with codes.Unavailable.
var ErrNoConnection = fmt.Errorf("no connection to rack controller: %w", dispatch.ErrUnreachable)

// AddressBook resolves controllers by system id.
type AddressBook interface {
	Get(systemID string) (models.Controller, bool)
}

type poolEntry struct {
	address string
	client  *rrgrpc.Client
}

// Pool keeps one client connection per controller and implements
// dispatch.Connector.
type Pool struct {
	mu       sync.Mutex
	entries  map[string]*poolEntry
	book     AddressBook
	security *models.SecurityConfig
	dialOpts []grpc.DialOption
	logger   logger.Logger
}

// NewPool creates a connection pool resolving controllers through book.
func NewPool(book AddressBook, security *models.SecurityConfig, log logger.Logger, dialOpts ...grpc.DialOption) *Pool {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Pool{
		entries:  make(map[string]*poolEntry),
		book:     book,
		security: security,
		dialOpts: dialOpts,
		logger:   log,
	}
}

// Connect fails fast for controllers that are unknown, marked unreachable or
// have no address. Otherwise it waits, at most until ctx is done, for the
// controller's connection to become ready.
func (p *Pool) Connect(ctx context.Context, systemID string) (dispatch.Caller, error) {
	c, ok := p.book.Get(systemID)

	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s is not registered", ErrNoConnection, systemID)
	case !c.Reachable:
		return nil, fmt.Errorf("%w: %s is marked unreachable", ErrNoConnection, systemID)
	case c.Address == "":
		return nil, fmt.Errorf("%w: %s has no address", ErrNoConnection, systemID)
	}

	client, err := p.clientFor(ctx, systemID, c.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoConnection, err)
	}

	if err := client.WaitForReady(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoConnection, systemID, err)
	}

	return &controllerCaller{
		systemID: systemID,
		client:   NewRackControllerClient(client.Conn()),
	}, nil
}

func (p *Pool) clientFor(ctx context.Context, systemID, address string) (*rrgrpc.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[systemID]; ok {
		if e.address == address {
			return e.client, nil
		}

		_ = e.client.Close()
		delete(p.entries, systemID)
	}

	client, err := rrgrpc.NewClient(ctx, rrgrpc.ClientConfig{
		Address:     address,
		Security:    p.security,
		Logger:      p.logger,
		DialOptions: p.dialOpts,
	})
	if err != nil {
		return nil, err
	}

	p.entries[systemID] = &poolEntry{address: address, client: client}

	p.logger.Debug().
		Str("controller_id", systemID).
		Str("address", address).
		Msg("Created rack controller client")

	return client, nil
}

// Close closes every pooled connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error

	for id, e := range p.entries {
		if err := e.client.Close(); err != nil {
			errs = append(errs, err)
		}

		delete(p.entries, id)
	}

	return errors.Join(errs...)
}
