package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("TEMPORAL_ADDRESS")
	os.Unsetenv("HTTP_LISTEN_ADDR")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("OPERATION_TIMEOUT")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, "localhost:7233", cfg.TemporalAddress)
	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.OperationTimeout)
	assert.Equal(t, 30, cfg.HealthRecordRetentionDays)
	assert.Equal(t, "terraform", cfg.TerraformBin)
}

func TestLoad_AllEnvVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/deployhub")
	t.Setenv("TEMPORAL_ADDRESS", "temporal.example.com:7233")
	t.Setenv("HTTP_LISTEN_ADDR", ":7071")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OPERATION_TIMEOUT", "15m")
	t.Setenv("AWX_URL", "https://awx.example.com")
	t.Setenv("AWX_TOKEN", "secret")
	t.Setenv("DOCKER_HOST", "tcp://docker.example.com:2376")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/deployhub", cfg.DatabaseURL)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalAddress)
	assert.Equal(t, ":7071", cfg.HTTPListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 15*time.Minute, cfg.OperationTimeout)
	assert.Equal(t, "https://awx.example.com", cfg.AWXURL)
	assert.Equal(t, "secret", cfg.AWXToken)
	assert.Equal(t, "tcp://docker.example.com:2376", cfg.DockerHost)
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("OPERATION_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.OperationTimeout)
}

func TestValidate(t *testing.T) {
	cfg := &Config{TemporalAddress: "localhost:7233"}
	err := cfg.Validate("deployhub-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.DatabaseURL = "postgres://localhost/deployhub"
	require.NoError(t, cfg.Validate("deployhub-api"))

	cfg.TemporalAddress = ""
	err = cfg.Validate("worker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEMPORAL_ADDRESS")
}
