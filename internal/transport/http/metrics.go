// Copyright 2026 The NexusCentral Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"

	"github.com/nexuscentral/nexuscentral/internal/observability/metrics"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the control-plane request counters. All record methods are
// nil-safe so handlers never have to guard them.
type Metrics struct {
	validations         metric.Int64Counter
	updateChecks        metric.Int64Counter
	rateLimitRejections metric.Int64Counter
}

// NewMetrics registers the domain counters on the meter.
func NewMetrics(m *metrics.Meter) (*Metrics, error) {
	validations, err := m.CreateCounter("nexuscentral_validation_requests_total",
		"Number of installation validation requests received")
	if err != nil {
		return nil, err
	}
	updateChecks, err := m.CreateCounter("nexuscentral_update_checks_total",
		"Number of update check requests received")
	if err != nil {
		return nil, err
	}
	rejections, err := m.CreateCounter("nexuscentral_ratelimit_rejections_total",
		"Number of requests rejected by the rate governor")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		validations:         validations,
		updateChecks:        updateChecks,
		rateLimitRejections: rejections,
	}, nil
}

func (m *Metrics) recordValidation(ctx context.Context) {
	if m == nil {
		return
	}
	m.validations.Add(ctx, 1)
}

func (m *Metrics) recordUpdateCheck(ctx context.Context) {
	if m == nil {
		return
	}
	m.updateChecks.Add(ctx, 1)
}

func (m *Metrics) recordRateLimitRejection(ctx context.Context) {
	if m == nil {
		return
	}
	m.rateLimitRejections.Add(ctx, 1)
}
