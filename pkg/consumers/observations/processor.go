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

// Package observations ingests controller observation events from JetStream
// into the discovery store.
package observations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carverauto/rackradar/pkg/discovery"
	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
)

// ErrMalformed marks messages that can never be applied. They are terminated
// rather than redelivered.
var ErrMalformed = errors.New("malformed observation")

// Processor applies decoded observations to a discovery store.
type Processor struct {
	store  discovery.Store
	logger logger.Logger
}

func NewProcessor(store discovery.Store, log logger.Logger) *Processor {
	return &Processor{store: store, logger: log}
}

// Process decodes one message payload and upserts it.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	var obs models.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var err error

	switch obs.Kind {
	case models.ObservationNeighbour:
		n := obs.Neighbour()
		_, err = p.store.UpsertNeighbour(ctx, &n)
	case models.ObservationMDNS:
		m := obs.MDNS()
		err = p.store.UpsertMDNS(ctx, &m)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, obs.Kind)
	}

	if errors.Is(err, discovery.ErrInvalidObservation) {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err != nil {
		return fmt.Errorf("apply %s observation from %s: %w", obs.Kind, obs.Interface.SystemID, err)
	}

	return nil
}
