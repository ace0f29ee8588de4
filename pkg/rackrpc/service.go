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

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service and method names as declared in proto/rackradar/v1/rackradar.proto.
const (
	RackController_ScanAllNetworks_FullMethodName = "/" + RackControllerService + "/ScanAllNetworks"
	ControllerRegistry_Heartbeat_FullMethodName   = "/" + ControllerRegistryService + "/Heartbeat"

	protoFile = "rackradar/v1/rackradar.proto"
)

// RackControllerServer is implemented by rack controllers. Implementations
// must embed UnimplementedRackControllerServer.
type RackControllerServer interface {
	ScanAllNetworks(ctx context.Context, req *ScanAllNetworksRequest) (*ScanAllNetworksResponse, error)
	mustEmbedUnimplementedRackControllerServer()
}

// UnimplementedRackControllerServer answers every method with
// codes.Unimplemented.
type UnimplementedRackControllerServer struct{}

func (UnimplementedRackControllerServer) ScanAllNetworks(context.Context, *ScanAllNetworksRequest) (*ScanAllNetworksResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ScanAllNetworks not implemented")
}

func (UnimplementedRackControllerServer) mustEmbedUnimplementedRackControllerServer() {}

// ControllerRegistryServer is implemented by the core. Implementations must
// embed UnimplementedControllerRegistryServer.
type ControllerRegistryServer interface {
	Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error)
	mustEmbedUnimplementedControllerRegistryServer()
}

// UnimplementedControllerRegistryServer answers every method with
// codes.Unimplemented.
type UnimplementedControllerRegistryServer struct{}

func (UnimplementedControllerRegistryServer) Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Heartbeat not implemented")
}

func (UnimplementedControllerRegistryServer) mustEmbedUnimplementedControllerRegistryServer() {}

// ServiceRegistrar is satisfied by *grpc.Server and the rackradar server
// wrapper.
type ServiceRegistrar interface {
	RegisterService(desc *grpc.ServiceDesc, impl interface{})
}

func RegisterRackControllerServer(s ServiceRegistrar, srv RackControllerServer) {
	s.RegisterService(&RackController_ServiceDesc, srv)
}

func RegisterControllerRegistryServer(s ServiceRegistrar, srv ControllerRegistryServer) {
	s.RegisterService(&ControllerRegistry_ServiceDesc, srv)
}

// RackController_ServiceDesc describes the controller-side service.
//
//nolint:gochecknoglobals // grpc service descriptor
var RackController_ServiceDesc = grpc.ServiceDesc{
	ServiceName: RackControllerService,
	HandlerType: (*RackControllerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ScanAllNetworks",
			Handler:    _RackController_ScanAllNetworks_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoFile,
}

// ControllerRegistry_ServiceDesc describes the core-side registry service.
//
//nolint:gochecknoglobals // grpc service descriptor
var ControllerRegistry_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ControllerRegistryService,
	HandlerType: (*ControllerRegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Heartbeat",
			Handler:    _ControllerRegistry_Heartbeat_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoFile,
}

func _RackController_ScanAllNetworks_Handler(
	srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(ScanAllNetworksRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(RackControllerServer).ScanAllNetworks(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RackController_ScanAllNetworks_FullMethodName,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RackControllerServer).ScanAllNetworks(ctx, req.(*ScanAllNetworksRequest))
	}

	return interceptor(ctx, in, info, handler)
}

func _ControllerRegistry_Heartbeat_Handler(
	srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ControllerRegistryServer).Heartbeat(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ControllerRegistry_Heartbeat_FullMethodName,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControllerRegistryServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}

	return interceptor(ctx, in, info, handler)
}
