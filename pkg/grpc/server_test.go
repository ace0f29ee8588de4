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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
)

type echoHandler interface{}

var echoDesc = grpc.ServiceDesc{
	ServiceName: "rackradar.test.Echo",
	HandlerType: (*echoHandler)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams:     []grpc.StreamDesc{},
}

func startBufconn(t *testing.T, s *Server) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)

	go func() { _ = s.Serve(lis) }()

	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestServer_HealthReflectsRegisteredServices(t *testing.T) {
	s := NewServer("bufnet", logger.NewTestLogger(), WithTelemetryDisabled())
	s.RegisterService(&echoDesc, struct{}{})

	conn := startBufconn(t, s)
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "rackradar.test.Echo"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "rackradar.test.Missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(logger.NewTestLogger())

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"},
		func(context.Context, interface{}) (interface{}, error) { panic("boom") })

	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestLoggingInterceptor_InjectsLogger(t *testing.T) {
	interceptor := LoggingInterceptor(logger.NewTestLogger())

	var got logger.Logger

	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x/y"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			got = FromContext(ctx)
			return req, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.NotNil(t, got)
}

func TestNewSecurityProvider(t *testing.T) {
	p, err := NewSecurityProvider(nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &NoSecurityProvider{}, p)

	p, err = NewSecurityProvider(&models.SecurityConfig{Mode: models.SecurityModeNone}, nil)
	require.NoError(t, err)
	assert.IsType(t, &NoSecurityProvider{}, p)

	_, err = NewSecurityProvider(&models.SecurityConfig{Mode: "spiffe"}, nil)
	require.ErrorIs(t, err, errUnknownSecurityMode)

	_, err = NewSecurityProvider(&models.SecurityConfig{Mode: models.SecurityModeMTLS}, nil)
	require.ErrorIs(t, err, errSecurityConfigRequired)
}

func TestJSONCodec(t *testing.T) {
	type msg struct {
		A string `json:"a"`
	}

	c := jsonCodec{}

	b, err := c.Marshal(msg{A: "x"})
	require.NoError(t, err)

	var out msg
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Equal(t, "x", out.A)
	assert.Equal(t, JSONCodecName, c.Name())
}

func TestNewClient_RequiresAddress(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{})
	require.ErrorIs(t, err, errAddressRequired)

	c, err := NewClient(context.Background(), ClientConfig{Address: "127.0.0.1:1"})
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestClient_WaitForReady(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := NewServer("bufnet", logger.NewTestLogger(), WithTelemetryDisabled())

	go func() { _ = srv.Serve(lis) }()

	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	c, err := NewClient(context.Background(), ClientConfig{
		Address: "passthrough:///bufnet",
		DialOptions: []grpc.DialOption{grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, c.WaitForReady(ctx))
}

func TestClient_WaitForReadyRefused(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	c, err := NewClient(context.Background(), ClientConfig{Address: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = c.WaitForReady(ctx)
	require.ErrorIs(t, err, errNotReady)
	require.NoError(t, ctx.Err(), "a refused connection fails before the deadline")
}
