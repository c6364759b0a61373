// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("langgate.workspace")

	loaderInits metric.Int64Counter
	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		loaderInits, err = meter.Int64Counter(
			"langgate.workspace.loader_inits",
			metric.WithDescription("Workspace loader initializations by kind and outcome"),
		)
		if err != nil {
			loaderInits = nil
		}
	})
}

// recordLoaderInit counts a loader initialization attempt.
func recordLoaderInit(ctx context.Context, kind string, success bool) {
	initMetrics()
	if loaderInits == nil {
		return
	}
	loaderInits.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.Bool("success", success),
		),
	)
}
