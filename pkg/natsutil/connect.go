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

// Package natsutil holds the NATS connection and stream plumbing shared by
// the observation publisher and consumer.
package natsutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
)

const (
	DefaultStreamName    = "DISCOVERY"
	DefaultConsumerName  = "rackradar-core"
	DefaultSubjectPrefix = "discovery.observations"
	DefaultMaxDeliver    = 5

	streamMaxAge = 24 * time.Hour
)

var errURLRequired = errors.New("nats url is required")

// ApplyDefaults fills unset stream, consumer and subject names.
func ApplyDefaults(cfg *models.NATSConfig) {
	if cfg.StreamName == "" {
		cfg.StreamName = DefaultStreamName
	}

	if cfg.ConsumerName == "" {
		cfg.ConsumerName = DefaultConsumerName
	}

	if cfg.Subject == "" {
		cfg.Subject = DefaultSubjectPrefix + ".>"
	}

	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = DefaultMaxDeliver
	}
}

// ObservationSubject is the subject a controller publishes its observations on.
func ObservationSubject(systemID string) string {
	return DefaultSubjectPrefix + "." + systemID
}

// Connect dials NATS and opens a JetStream context, honouring the optional
// mTLS and domain settings.
func Connect(cfg *models.NATSConfig, name string, log logger.Logger) (*nats.Conn, jetstream.JetStream, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, nil, errURLRequired
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	if cfg.Security != nil && cfg.Security.Mode == models.SecurityModeMTLS {
		tlsConf, err := TLSConfig(cfg.Security)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var js jetstream.JetStream
	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()

		return nil, nil, fmt.Errorf("failed to open JetStream: %w", err)
	}

	return nc, js, nil
}

// EnsureStream creates the observation stream if it does not exist, or
// updates its subjects if it does.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg *models.NATSConfig) (jetstream.Stream, error) {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.Subject},
		Storage:  jetstream.FileStorage,
		MaxAge:   streamMaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.StreamName, err)
	}

	return stream, nil
}
