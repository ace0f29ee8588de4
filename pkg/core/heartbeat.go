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
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
	"github.com/carverauto/rackradar/pkg/rackrpc"
)

// HeartbeatRegistry records controller liveness.
type HeartbeatRegistry interface {
	Heartbeat(id, hostname, address string, at time.Time) error
}

// InterfaceSyncer replaces the configured interfaces of one controller in
// the inventory directory.
type InterfaceSyncer interface {
	SyncController(ctx context.Context, systemID string, ifaces []models.ConfiguredInterface) error
}

// InterfaceCleaner drops discoveries observed by an interface that no
// longer exists.
type InterfaceCleaner interface {
	DeleteForInterface(ctx context.Context, ref models.InterfaceRef) (int, error)
}

// RegistryService serves the controller heartbeat RPC.
type RegistryService struct {
	rackrpc.UnimplementedControllerRegistryServer

	registry HeartbeatRegistry
	syncer   InterfaceSyncer
	cleaner  InterfaceCleaner
	logger   logger.Logger
	now      func() time.Time

	mu sync.Mutex
	// known holds the interfaces each controller reported last, by name.
	known map[string]map[string]models.InterfaceRef
}

var _ rackrpc.ControllerRegistryServer = (*RegistryService)(nil)

func NewRegistryService(reg HeartbeatRegistry, syncer InterfaceSyncer, cleaner InterfaceCleaner, log logger.Logger) *RegistryService {
	return &RegistryService{
		registry: reg,
		syncer:   syncer,
		cleaner:  cleaner,
		logger:   log,
		now:      time.Now,
		known:    make(map[string]map[string]models.InterfaceRef),
	}
}

// Heartbeat marks the controller reachable and reconciles its interfaces.
// Interfaces missing from the report are treated as deleted.
func (s *RegistryService) Heartbeat(ctx context.Context, req *rackrpc.HeartbeatRequest) (*rackrpc.HeartbeatResponse, error) {
	if req == nil || req.SystemID == "" {
		return nil, status.Error(codes.InvalidArgument, "system_id is required")
	}

	if err := s.registry.Heartbeat(req.SystemID, req.Hostname, req.Address, s.now()); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if s.syncer != nil {
		if err := s.syncer.SyncController(ctx, req.SystemID, req.Interfaces); err != nil {
			s.logger.Error().Err(err).Str("controller_id", req.SystemID).Msg("failed to sync controller interfaces")

			return &rackrpc.HeartbeatResponse{Accepted: true}, nil
		}
	}

	s.dropRemovedInterfaces(ctx, req.SystemID, req.Interfaces)

	return &rackrpc.HeartbeatResponse{Accepted: true}, nil
}

func (s *RegistryService) dropRemovedInterfaces(ctx context.Context, systemID string, ifaces []models.ConfiguredInterface) {
	current := make(map[string]models.InterfaceRef, len(ifaces))
	for _, iface := range ifaces {
		current[iface.Name] = models.InterfaceRef{SystemID: systemID, Name: iface.Name, ID: iface.ID}
	}

	s.mu.Lock()
	previous := s.known[systemID]
	s.known[systemID] = current
	s.mu.Unlock()

	if s.cleaner == nil {
		return
	}

	for name, ref := range previous {
		if _, ok := current[name]; ok {
			continue
		}

		removed, err := s.cleaner.DeleteForInterface(ctx, ref)
		if err != nil {
			s.logger.Error().Err(err).
				Str("controller_id", systemID).
				Str("interface", name).
				Msg("failed to delete discoveries for removed interface")

			continue
		}

		s.logger.Info().
			Str("controller_id", systemID).
			Str("interface", name).
			Int("removed", removed).
			Msg("interface removed, discoveries deleted")
	}
}
