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

package observations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/rackradar/pkg/logger"
)

const (
	defaultMaxPullMessages = 50
	defaultPullExpiry      = 5 * time.Second
	defaultAckWait         = 30 * time.Second
	defaultMaxAckPending   = 1000
	fetchRetryDelay        = time.Second
)

// Consumer wraps a durable JetStream pull consumer.
type Consumer struct {
	consumer     jetstream.Consumer
	streamName   string
	consumerName string
	maxDeliver   int
	logger       logger.Logger
}

// NewConsumer creates or retrieves the durable pull consumer for the stream.
func NewConsumer(
	ctx context.Context,
	js jetstream.JetStream,
	streamName, consumerName, subject string,
	maxDeliver int,
	log logger.Logger,
) (*Consumer, error) {
	consumer, err := js.Consumer(ctx, streamName, consumerName)
	if err != nil {
		cfg := jetstream.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       defaultAckWait,
			MaxDeliver:    maxDeliver,
			MaxAckPending: defaultMaxAckPending,
			FilterSubject: subject,
		}

		consumer, err = js.CreateConsumer(ctx, streamName, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer %s on %s: %w", consumerName, streamName, err)
		}
	}

	log.Info().
		Str("stream", streamName).
		Str("consumer", consumerName).
		Msg("pull consumer ready")

	return &Consumer{
		consumer:     consumer,
		streamName:   streamName,
		consumerName: consumerName,
		maxDeliver:   maxDeliver,
		logger:       log,
	}, nil
}

// ProcessMessages fetches and applies messages until ctx is cancelled or the
// connection is closed for good.
func (c *Consumer) ProcessMessages(ctx context.Context, processor *Processor) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := c.consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(defaultPullExpiry))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			if isFatalFetchError(err) {
				return err
			}

			c.logger.Warn().Err(err).Msg("failed to fetch observations")

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchRetryDelay):
			}

			continue
		}

		for msg := range msgs.Messages() {
			c.handleMessage(ctx, msg, processor)
		}

		if err := msgs.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			if ctx.Err() != nil {
				return nil
			}

			if isFatalFetchError(err) {
				return err
			}

			c.logger.Debug().Err(err).Msg("fetch finished with error")
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg, processor *Processor) {
	err := processor.Process(ctx, msg.Data())
	if err == nil {
		_ = msg.Ack()

		return
	}

	if errors.Is(err, ErrMalformed) {
		c.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("dropping malformed observation")

		_ = msg.Term()

		return
	}

	delivered := uint64(1)
	if md, mdErr := msg.Metadata(); mdErr == nil {
		delivered = md.NumDelivered
	}

	if c.maxDeliver > 0 && delivered >= uint64(c.maxDeliver) {
		c.logger.Error().Err(err).
			Str("subject", msg.Subject()).
			Uint64("delivered", delivered).
			Msg("giving up on observation after max deliveries")

		_ = msg.Ack()

		return
	}

	c.logger.Warn().Err(err).Uint64("delivered", delivered).Msg("observation not applied, will retry")

	_ = msg.Nak()
}

func isFatalFetchError(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, jetstream.ErrConsumerDeleted) ||
		errors.Is(err, jetstream.ErrConsumerNotFound)
}
