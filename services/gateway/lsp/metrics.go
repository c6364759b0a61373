// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for peer connection events.
var meter = otel.Meter("langgate.lsp")

// Metrics for the peer connection.
var (
	peerSpawns    metric.Int64Counter
	notifReceived metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		peerSpawns, err = meter.Int64Counter(
			"lsp_peer_spawns_total",
			metric.WithDescription("Total number of peer process spawns"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		notifReceived, err = meter.Int64Counter(
			"lsp_notifications_received_total",
			metric.WithDescription("Peer notifications received by method"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordPeerSpawn records a peer spawn attempt.
func recordPeerSpawn(ctx context.Context, command string, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	peerSpawns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.Bool("success", success),
	))
}

// RecordNotification counts a received peer notification by method.
func RecordNotification(ctx context.Context, method string) {
	if err := initMetrics(); err != nil {
		return
	}
	notifReceived.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
	))
}
