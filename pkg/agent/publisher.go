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
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
	"github.com/carverauto/rackradar/pkg/natsutil"
)

// Publisher forwards observations to the core.
type Publisher interface {
	Publish(ctx context.Context, obs *models.Observation) error
}

// JetStreamPublisher publishes observations on the controller's subject.
type JetStreamPublisher struct {
	js      jetstream.JetStream
	subject string
}

func NewJetStreamPublisher(js jetstream.JetStream, systemID string) *JetStreamPublisher {
	return &JetStreamPublisher{js: js, subject: natsutil.ObservationSubject(systemID)}
}

func (p *JetStreamPublisher) Publish(ctx context.Context, obs *models.Observation) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}

	if _, err := p.js.Publish(ctx, p.subject, payload); err != nil {
		return fmt.Errorf("failed to publish observation: %w", err)
	}

	return nil
}

// logPublisher is used when no NATS connection is configured.
type logPublisher struct {
	logger logger.Logger
}

func (p logPublisher) Publish(_ context.Context, obs *models.Observation) error {
	p.logger.Info().
		Str("kind", string(obs.Kind)).
		Str("interface", obs.Interface.Name).
		Str("ip", obs.IP).
		Str("mac_address", obs.MACAddress).
		Msg("observation")

	return nil
}
