// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Run("defaults to no exporters", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Equal(t, "langgate", cfg.ServiceName)
		assert.Equal(t, "none", cfg.TraceExporter)
		assert.Equal(t, "none", cfg.MetricExporter)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
		t.Setenv("LANGGATE_ENV", "production")

		cfg := DefaultConfig()
		assert.Equal(t, "stdout", cfg.TraceExporter)
		assert.Equal(t, "production", cfg.Environment)
	})
}

func TestInit(t *testing.T) {
	t.Run("rejects nil context", func(t *testing.T) {
		_, err := Init(nil, DefaultConfig()) //nolint:staticcheck
		assert.ErrorIs(t, err, ErrNilContext)
	})

	t.Run("no exporters is a valid no-op", func(t *testing.T) {
		shutdown, err := Init(context.Background(), Config{
			ServiceName:    "test",
			TraceExporter:  "none",
			MetricExporter: "none",
		})
		require.NoError(t, err)
		require.NotNil(t, shutdown)
		assert.NoError(t, shutdown(context.Background()))
	})

	t.Run("unknown trace exporter", func(t *testing.T) {
		_, err := Init(context.Background(), Config{
			ServiceName:   "test",
			TraceExporter: "jaeger-classic",
		})
		assert.ErrorIs(t, err, ErrUnknownExporter)
	})

	t.Run("stdout exporters initialize", func(t *testing.T) {
		shutdown, err := Init(context.Background(), Config{
			ServiceName:    "test",
			TraceExporter:  "stdout",
			MetricExporter: "stdout",
		})
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	})
}
