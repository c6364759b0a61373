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
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// fakeNotifier records notifications sent by loaders.
type fakeNotifier struct {
	methods []string
	params  []interface{}
	err     error
}

func (f *fakeNotifier) Notify(method string, params interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.methods = append(f.methods, method)
	f.params = append(f.params, params)
	return nil
}

func TestNew(t *testing.T) {
	t.Run("default kind", func(t *testing.T) {
		l, err := New(Config{Kind: KindDefault}, "/tmp/ws", testLogger())
		require.NoError(t, err)
		assert.Equal(t, KindDefault, l.Kind())
	})

	t.Run("empty kind falls back to default", func(t *testing.T) {
		l, err := New(Config{}, "/tmp/ws", testLogger())
		require.NoError(t, err)
		assert.Equal(t, KindDefault, l.Kind())
	})

	t.Run("project kind", func(t *testing.T) {
		l, err := New(Config{Kind: KindProject}, "/tmp/ws", testLogger())
		require.NoError(t, err)
		assert.Equal(t, KindProject, l.Kind())
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := New(Config{Kind: "exotic"}, "/tmp/ws", testLogger())
		assert.Error(t, err)
	})
}

func TestDefaultLoader(t *testing.T) {
	t.Run("ready immediately without ready method", func(t *testing.T) {
		l := newDefaultLoader(Config{}, testLogger())
		require.NoError(t, l.Initialize(context.Background(), nil))
		assert.True(t, l.Ready())
	})

	t.Run("gated on readiness notification", func(t *testing.T) {
		l := newDefaultLoader(Config{ReadyMethod: "serverReady"}, testLogger())
		require.NoError(t, l.Initialize(context.Background(), nil))
		assert.False(t, l.Ready())

		l.HandleNotification("window/logMessage")
		assert.False(t, l.Ready(), "unrelated notification must not flip readiness")

		l.HandleNotification("serverReady")
		assert.True(t, l.Ready())
	})

	t.Run("repeat notification is harmless", func(t *testing.T) {
		l := newDefaultLoader(Config{ReadyMethod: "serverReady"}, testLogger())
		require.NoError(t, l.Initialize(context.Background(), nil))
		l.HandleNotification("serverReady")
		l.HandleNotification("serverReady")
		assert.True(t, l.Ready())
	})
}

func TestProjectLoader(t *testing.T) {
	writeFile := func(t *testing.T, dir, name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("detects project file and extracts module name", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "go.mod", "module example.com/widget\n\ngo 1.22\n")

		l := newProjectLoader(Config{
			Kind:         KindProject,
			ProjectGlobs: []string{"go.mod"},
		}, dir, testLogger())

		require.NoError(t, l.Initialize(context.Background(), &fakeNotifier{}))
		assert.True(t, l.Ready())

		projects := l.Projects()
		require.Len(t, projects, 1)
		assert.Equal(t, "example.com/widget", projects[0].Name)
	})

	t.Run("announces detected projects", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "app.sln", "")

		notifier := &fakeNotifier{}
		l := newProjectLoader(Config{
			Kind:         KindProject,
			OpenMethod:   "solution/open",
			ProjectGlobs: []string{"*.sln"},
		}, dir, testLogger())

		require.NoError(t, l.Initialize(context.Background(), notifier))
		require.Len(t, notifier.methods, 1)
		assert.Equal(t, "solution/open", notifier.methods[0])
	})

	t.Run("waits for readiness notification", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "go.mod", "module m\n")

		l := newProjectLoader(Config{
			Kind:         KindProject,
			ReadyMethod:  "workspace/projectInitializationComplete",
			ProjectGlobs: []string{"go.mod"},
		}, dir, testLogger())

		require.NoError(t, l.Initialize(context.Background(), &fakeNotifier{}))
		assert.False(t, l.Ready())
		l.HandleNotification("workspace/projectInitializationComplete")
		assert.True(t, l.Ready())
	})

	t.Run("errors when nothing matches", func(t *testing.T) {
		l := newProjectLoader(Config{
			Kind:         KindProject,
			ProjectGlobs: []string{"*.sln"},
		}, t.TempDir(), testLogger())

		assert.Error(t, l.Initialize(context.Background(), &fakeNotifier{}))
	})

	t.Run("glob matching against changed paths", func(t *testing.T) {
		l := newProjectLoader(Config{
			ProjectGlobs: []string{"go.mod", "*.sln"},
		}, "/tmp/ws", testLogger())

		assert.True(t, l.matchesGlob("/tmp/ws/go.mod"))
		assert.True(t, l.matchesGlob("/tmp/ws/app.sln"))
		assert.False(t, l.matchesGlob("/tmp/ws/main.go"))
	})
}

func TestManager(t *testing.T) {
	t.Run("forces ready on loader failure", func(t *testing.T) {
		l := newProjectLoader(Config{
			Kind:         KindProject,
			ProjectGlobs: []string{"*.sln"},
		}, t.TempDir(), testLogger())

		m := NewManager(l, testLogger())
		m.Initialize(context.Background(), &fakeNotifier{})
		assert.True(t, m.Ready(), "failed loader must not block operations")
	})

	t.Run("rejected then ready after notification", func(t *testing.T) {
		l := newDefaultLoader(Config{ReadyMethod: "serverReady"}, testLogger())
		m := NewManager(l, testLogger())
		m.Initialize(context.Background(), nil)

		assert.False(t, m.Ready())
		m.HandleNotification("serverReady")
		assert.True(t, m.Ready())
	})
}
