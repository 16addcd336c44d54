package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "python3", cfg.Executor.PythonPath)
	assert.Equal(t, 10*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Executor.MaxTimeout)
	assert.Equal(t, 1<<20, cfg.Executor.MaxOutputBytes)
	assert.Equal(t, 4, cfg.Executor.Parallelism)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Server.MaxTestCases)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "pyshala-lessons", cfg.Assets.Bucket)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EXECUTOR_PYTHON_PATH", "/opt/python/bin/python3.12")
	t.Setenv("EXECUTOR_TIMEOUT", "3s")
	t.Setenv("EXECUTOR_PARALLELISM", "8")
	t.Setenv("WORKER_POOL_SIZE", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/python/bin/python3.12", cfg.Executor.PythonPath)
	assert.Equal(t, 3*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, 8, cfg.Executor.Parallelism)
	assert.Equal(t, 2, cfg.Worker.PoolSize)
}

func TestLoad_RejectsInvalidExecutorSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"zero timeout", map[string]string{"EXECUTOR_TIMEOUT": "0s"}, "EXECUTOR_TIMEOUT"},
		{"max below default", map[string]string{"EXECUTOR_TIMEOUT": "20s", "EXECUTOR_MAX_TIMEOUT": "5s"}, "EXECUTOR_MAX_TIMEOUT"},
		{"no parallelism", map[string]string{"EXECUTOR_PARALLELISM": "0"}, "EXECUTOR_PARALLELISM"},
		{"no output budget", map[string]string{"EXECUTOR_MAX_OUTPUT_BYTES": "-1"}, "EXECUTOR_MAX_OUTPUT_BYTES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
