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

package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/rackradar/pkg/models"
)

const (
	meterName = "github.com/carverauto/rackradar"

	metricScanRequests     = "rackradar_scan_requests_total"
	metricScanOutcomes     = "rackradar_scan_outcomes_total"
	metricScanDuration     = "rackradar_scan_dispatch_duration_ms"
	metricDiscoveryUpserts = "rackradar_discovery_upserts_total"
	metricDiscoveryClears  = "rackradar_discovery_clears_total"
)

// Recorder implements the scan and discovery recorder interfaces. A nil
// *Recorder records nothing.
type Recorder struct {
	scanRequests metric.Int64Counter
	scanOutcomes metric.Int64Counter
	scanDuration metric.Float64Histogram
	upserts      metric.Int64Counter
	clears       metric.Int64Counter
}

// NewRecorder creates the instruments on mp's meter.
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	meter := mp.Meter(meterName)

	var (
		r   Recorder
		err error
	)

	if r.scanRequests, err = meter.Int64Counter(metricScanRequests,
		metric.WithDescription("Fleet-wide scan requests")); err != nil {
		return nil, err
	}

	if r.scanOutcomes, err = meter.Int64Counter(metricScanOutcomes,
		metric.WithDescription("Per-controller scan outcomes")); err != nil {
		return nil, err
	}

	if r.scanDuration, err = meter.Float64Histogram(metricScanDuration,
		metric.WithDescription("Time from dispatch start to report"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	if r.upserts, err = meter.Int64Counter(metricDiscoveryUpserts,
		metric.WithDescription("Applied discovery observations")); err != nil {
		return nil, err
	}

	if r.clears, err = meter.Int64Counter(metricDiscoveryClears,
		metric.WithDescription("Discovery records removed by clear")); err != nil {
		return nil, err
	}

	return &r, nil
}

func (r *Recorder) RecordScan(ctx context.Context, report *models.ScanReport, elapsed time.Duration) {
	if r == nil || report == nil {
		return
	}

	r.scanRequests.Add(ctx, 1)
	r.scanDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond))

	counts := make(map[models.ScanOutcome]int64)
	for _, outcome := range report.Outcomes() {
		counts[outcome]++
	}

	for outcome, n := range counts {
		r.scanOutcomes.Add(ctx, n, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}
}

func (r *Recorder) RecordUpsert(ctx context.Context, kind models.ObservationKind) {
	if r == nil {
		return
	}

	r.upserts.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (r *Recorder) RecordClear(ctx context.Context, scope string, removed int) {
	if r == nil {
		return
	}

	r.clears.Add(ctx, int64(removed), metric.WithAttributes(attribute.String("scope", scope)))
}
