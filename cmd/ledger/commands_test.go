package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ledger/config"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("LEDGER_STORAGE_BACKEND", config.BackendSQLite)
	t.Setenv("LEDGER_SQLITE_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("LEDGER_LOG_LEVEL", "error")
}

func TestCLI_ProgressSurvivesRestarts(t *testing.T) {
	useSQLite(t)

	out, err := runCLI(t, "award", "120", "--reason", "warmup")
	require.NoError(t, err)
	assert.Contains(t, out, "Level up! Now level 2")

	out, err = runCLI(t, "badge", "first", "First Steps")
	require.NoError(t, err)
	assert.Contains(t, out, "Badge earned: First Steps")

	out, err = runCLI(t, "badge", "first", "First Steps")
	require.NoError(t, err)
	assert.Contains(t, out, `badge "first" already held`)

	out, err = runCLI(t, "complete", "cap1", "Trees")
	require.NoError(t, err)
	assert.Contains(t, out, "+50 XP: Completed Trees")
	assert.Contains(t, out, "Badge earned: Completed: Trees")
	assert.Contains(t, out, "Module complete!")

	out, err = runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Level 2")
	assert.Contains(t, out, "XP: 170")
	assert.Contains(t, out, "Badges: 2")
	assert.Contains(t, out, "Completed: Trees")
}

func TestCLI_AwardRejectsNonPositive(t *testing.T) {
	useSQLite(t)

	out, err := runCLI(t, "award", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing awarded")

	_, err = runCLI(t, "award", "ten")
	assert.Error(t, err)
}

func TestCLI_ResetNeedsConfirmation(t *testing.T) {
	useSQLite(t)

	_, err := runCLI(t, "award", "250")
	require.NoError(t, err)

	_, err = runCLI(t, "reset")
	assert.Error(t, err)

	out, err := runCLI(t, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Level 1")

	out, err = runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "XP: 0")
}

func TestCLI_BadgeValidation(t *testing.T) {
	useSQLite(t)

	_, err := runCLI(t, "badge", " ", "Blank")
	assert.Error(t, err)
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	cfg, err := config.LoadFromMap(map[string]string{"LEDGER_STORAGE_BACKEND": config.BackendMemory})
	require.NoError(t, err)

	backend, err := openBackend(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, backend)

	cfg.Storage.Backend = config.BackendBadger
	cfg.Badger.InMemory = true
	backend, err = openBackend(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	cfg.Storage.Backend = "etcd"
	_, err = openBackend(ctx, cfg, logger.Nop())
	assert.Error(t, err)
}
