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

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/carverauto/rackradar/pkg/dispatch"
	rrgrpc "github.com/carverauto/rackradar/pkg/grpc"
)

var (
	// ErrScanInProgress is returned when the controller is already scanning.
	ErrScanInProgress = fmt.Errorf("network scan already in progress: %w", dispatch.ErrAlreadyRunning)

	errUnsupportedCommand = errors.New("unsupported command")
)

// RackControllerClient calls the controller-side service.
type RackControllerClient struct {
	cc grpc.ClientConnInterface
}

func NewRackControllerClient(cc grpc.ClientConnInterface) *RackControllerClient {
	return &RackControllerClient{cc: cc}
}

// ScanAllNetworks asks the controller to start scanning. A scan that is
// already running surfaces as ErrScanInProgress.
func (c *RackControllerClient) ScanAllNetworks(
	ctx context.Context, req *ScanAllNetworksRequest, opts ...grpc.CallOption,
) (*ScanAllNetworksResponse, error) {
	out := new(ScanAllNetworksResponse)

	opts = append([]grpc.CallOption{grpc.CallContentSubtype(rrgrpc.JSONCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, RackController_ScanAllNetworks_FullMethodName, req, out, opts...); err != nil {
		return nil, translateError(err)
	}

	return out, nil
}

// ControllerRegistryClient calls the core-side registry service.
type ControllerRegistryClient struct {
	cc grpc.ClientConnInterface
}

func NewControllerRegistryClient(cc grpc.ClientConnInterface) *ControllerRegistryClient {
	return &ControllerRegistryClient{cc: cc}
}

func (c *ControllerRegistryClient) Heartbeat(
	ctx context.Context, req *HeartbeatRequest, opts ...grpc.CallOption,
) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)

	opts = append([]grpc.CallOption{grpc.CallContentSubtype(rrgrpc.JSONCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ControllerRegistry_Heartbeat_FullMethodName, req, out, opts...); err != nil {
		return nil, translateError(err)
	}

	return out, nil
}

// translateError maps gRPC status codes onto the errors the dispatcher
// classifies.
func translateError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrScanInProgress, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", ErrNoConnection, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	case codes.Canceled:
		return fmt.Errorf("%w: %w", context.Canceled, err)
	default:
		return err
	}
}

// controllerCaller binds a controller client to a system id for the
// dispatcher.
type controllerCaller struct {
	systemID string
	client   *RackControllerClient
}

func (c *controllerCaller) Call(ctx context.Context, cmd dispatch.Command) error {
	req, ok := cmd.(*ScanAllNetworksRequest)
	if !ok {
		return fmt.Errorf("%w: %s", errUnsupportedCommand, cmd.Name())
	}

	_, err := c.client.ScanAllNetworks(ctx, req)
	if err != nil {
		return fmt.Errorf("controller %s: %w", c.systemID, err)
	}

	return nil
}
