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

package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/keepalive"

	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
)

var (
	errAddressRequired = errors.New("client address is required")
	errNotReady        = errors.New("connection not ready")
)

// ClientConfig describes a connection to a single remote service.
type ClientConfig struct {
	Address     string
	Security    *models.SecurityConfig
	Logger      logger.Logger
	DialOptions []grpc.DialOption
}

// Client owns a lazily connected *grpc.ClientConn.
type Client struct {
	conn   *grpc.ClientConn
	logger logger.Logger
}

// NewClient creates a client connection. The connection is established on
// first use; NewClient does not block on the network.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, errAddressRequired
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	provider, err := NewSecurityProvider(cfg.Security, log)
	if err != nil {
		return nil, err
	}

	creds, err := provider.GetClientCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get client credentials: %w", err)
	}

	opts := []grpc.DialOption{
		creds,
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(JSONCodecName)),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                120 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", cfg.Address, err)
	}

	return &Client{conn: conn, logger: log}, nil
}

// Conn returns the underlying connection.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

// WaitForReady starts connecting an idle connection and blocks until it is
// ready, has failed, or ctx is done.
func (c *Client) WaitForReady(ctx context.Context) error {
	c.conn.Connect()

	for {
		state := c.conn.GetState()

		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure, connectivity.Shutdown:
			return fmt.Errorf("%w: %s", errNotReady, state)
		case connectivity.Idle, connectivity.Connecting:
		}

		if !c.conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("%w: %s: %w", errNotReady, state, ctx.Err())
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
