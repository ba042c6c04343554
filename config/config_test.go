package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 4500*time.Millisecond, cfg.Studio.ClassifyDelayDuration())
	assert.Equal(t, time.Duration(0), cfg.Studio.CallDelayDuration())
	assert.Equal(t, int64(5<<20), cfg.Studio.MaxUploadBytes)
	assert.Equal(t, "gemini-2.5-flash-image", cfg.AI.TryOnModel)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: staging
database:
  host: db.internal
  name: studio
studio:
  call_delay: 2s
  daily_attempt_limit: 5
`), 0o600))
	t.Setenv("DB_NAME", "override")
	t.Setenv("STUDIO_MAX_UPLOAD_BYTES", "1024")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "override", cfg.Database.Name)
	assert.Equal(t, 2*time.Second, cfg.Studio.CallDelayDuration())
	assert.Equal(t, int32(5), cfg.Studio.DailyAttemptLimit)
	assert.Equal(t, int64(1024), cfg.Studio.MaxUploadBytes)
	assert.Equal(t, "postgres://:@db.internal:5432/override", cfg.Database.DSN())
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte("studio:\n  call_delay: soon\n"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "studio.call_delay")

	t.Setenv("STUDIO_DAILY_ATTEMPT_LIMIT", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, "STUDIO_DAILY_ATTEMPT_LIMIT")
}
