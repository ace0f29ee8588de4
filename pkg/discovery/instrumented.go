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

package discovery

import (
	"context"

	"github.com/carverauto/rackradar/pkg/models"
)

// Recorder receives store metrics.
type Recorder interface {
	RecordUpsert(ctx context.Context, kind models.ObservationKind)
	RecordClear(ctx context.Context, scope string, removed int)
}

type instrumented struct {
	Store
	rec Recorder
}

// Instrument wraps store so successful writes are reported to rec. A nil
// recorder returns store unchanged.
func Instrument(store Store, rec Recorder) Store {
	if rec == nil {
		return store
	}

	return &instrumented{Store: store, rec: rec}
}

func (i *instrumented) UpsertNeighbour(ctx context.Context, obs *models.NeighbourObservation) (*models.Discovery, error) {
	d, err := i.Store.UpsertNeighbour(ctx, obs)
	if err == nil {
		i.rec.RecordUpsert(ctx, models.ObservationNeighbour)
	}

	return d, err
}

func (i *instrumented) UpsertMDNS(ctx context.Context, obs *models.MDNSObservation) error {
	err := i.Store.UpsertMDNS(ctx, obs)
	if err == nil {
		i.rec.RecordUpsert(ctx, models.ObservationMDNS)
	}

	return err
}

func (i *instrumented) Clear(ctx context.Context, scope Scope) (int, error) {
	n, err := i.Store.Clear(ctx, scope)
	if err == nil {
		i.rec.RecordClear(ctx, string(scope), n)
	}

	return n, err
}
