// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("langgate.engine")

	operations  metric.Int64Counter
	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		operations, err = meter.Int64Counter(
			"langgate.engine.operations",
			metric.WithDescription("Outward operations by name and outcome"),
		)
		if err != nil {
			operations = nil
		}
	})
}

// recordOperation counts one outward operation completion.
func recordOperation(ctx context.Context, name string, success bool) {
	initMetrics()
	if operations == nil {
		return
	}
	operations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", name),
			attribute.Bool("success", success),
		),
	)
}
