package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/BradenHooton/amgate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	os.Clearenv()
	t.Cleanup(os.Clearenv)
	os.Setenv("STORAGE_BACKEND", "memory")
	os.Setenv("SESSION_HASH_KEY", "c2Vzc2lvbi1oYXNoLWtleS0zMi1ieXRlcy1sb25nISE=")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewLogger_Level(t *testing.T) {
	assert.True(t, newLogger("debug").Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, newLogger("warn").Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, newLogger("bogus").Enabled(context.Background(), slog.LevelInfo))
}

func TestRequirePostgres(t *testing.T) {
	cfg := memoryConfig(t)
	assert.Error(t, requirePostgres(cfg, "sweep"))

	cfg.Storage.Backend = config.BackendPostgres
	assert.NoError(t, requirePostgres(cfg, "sweep"))
}

func TestNewRouter_MemoryBackend(t *testing.T) {
	cfg := memoryConfig(t)
	a, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.NoError(t, err)
	defer a.Close()

	router := newRouter(a)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","memory":"up"}`, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "sweep", "unlock"} {
		assert.True(t, names[want], want)
	}
}

func TestUnlockCommand_RequiresPostgres(t *testing.T) {
	memoryConfig(t)
	root := newRootCommand()
	root.SetArgs([]string{"unlock", "--domain", "d1", "--username", "bob"})
	root.SetOut(&bytes.Buffer{})

	assert.ErrorContains(t, root.Execute(), "STORAGE_BACKEND")
}
