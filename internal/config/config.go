package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL     string
	TemporalAddress string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string
	ServiceName     string

	// OperationTimeout bounds adapter calls for templates that carry no
	// provisioning-duration estimate of their own.
	OperationTimeout time.Duration

	// HealthRecordRetentionDays controls pruning of old health records.
	HealthRecordRetentionDays int

	// HealthSweepCron is the cron expression for the periodic health sweep.
	HealthSweepCron string

	// Kubernetes/Helm backend.
	Kubeconfig      string
	HelmDriver      string
	HelmMaxHistory  int

	// AWX backend.
	AWXURL          string
	AWXToken        string
	AWXPollInterval time.Duration

	// Compose backend.
	DockerHost    string
	DockerCACert  string
	DockerCert    string
	DockerKey     string
	DockerNetwork string

	// Terraform backend.
	TerraformBin     string
	TerraformWorkdir string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		TemporalAddress: getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:  getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsAddr:     getEnv("METRICS_ADDR", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ServiceName:     getEnv("SERVICE_NAME", "deployhub"),

		OperationTimeout:          getEnvDuration("OPERATION_TIMEOUT", 30*time.Minute),
		HealthRecordRetentionDays: getEnvInt("HEALTH_RECORD_RETENTION_DAYS", 30),
		HealthSweepCron:           getEnv("HEALTH_SWEEP_CRON", "*/15 * * * *"),

		Kubeconfig:     getEnv("KUBECONFIG", ""),
		HelmDriver:     getEnv("HELM_DRIVER", "secret"),
		HelmMaxHistory: getEnvInt("HELM_MAX_HISTORY", 10),

		AWXURL:          getEnv("AWX_URL", ""),
		AWXToken:        getEnv("AWX_TOKEN", ""),
		AWXPollInterval: getEnvDuration("AWX_POLL_INTERVAL", 5*time.Second),

		DockerHost:    getEnv("DOCKER_HOST", "unix:///var/run/docker.sock"),
		DockerCACert:  getEnv("DOCKER_CA_CERT", ""),
		DockerCert:    getEnv("DOCKER_CLIENT_CERT", ""),
		DockerKey:     getEnv("DOCKER_CLIENT_KEY", ""),
		DockerNetwork: getEnv("DOCKER_NETWORK", "deployhub_default"),

		TerraformBin:     getEnv("TERRAFORM_BIN", "terraform"),
		TerraformWorkdir: getEnv("TERRAFORM_WORKDIR", "/var/lib/deployhub/terraform"),
	}

	return cfg, nil
}

// Validate checks the settings a given component cannot run without.
func (c *Config) Validate(component string) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s: DATABASE_URL is required", component)
	}
	if c.TemporalAddress == "" {
		return fmt.Errorf("%s: TEMPORAL_ADDRESS is required", component)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
