package model

import (
	"encoding/json"
	"time"
)

// Instance is one tenant's deployed environment in one environment slot.
// A (tenant_id, environment) pair has at most one non-destroyed instance.
// State transitions are driven exclusively by the orchestrator.
type Instance struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	TemplateID  string `json:"template_id"`
	Environment string `json:"environment"`
	Region      string `json:"region,omitempty"`

	State           string    `json:"state"`
	StateReason     *string   `json:"state_reason,omitempty"`
	LastStateChange time.Time `json:"last_state_change"`

	// Config is the merged template defaults + instance overrides.
	Config  json.RawMessage `json:"config,omitempty"`
	Version string          `json:"version,omitempty"`

	Endpoints map[string]string `json:"endpoints,omitempty"`

	// Backend locators, filled in from execution results.
	Namespace   *string `json:"namespace,omitempty"`
	ClusterName *string `json:"cluster_name,omitempty"`
	BackendID   *string `json:"backend_id,omitempty"`

	CPUCores  float64 `json:"cpu_cores"`
	MemoryGB  int     `json:"memory_gb"`
	StorageGB int     `json:"storage_gb"`

	LastHealthCheck *time.Time      `json:"last_health_check,omitempty"`
	HealthStatus    string          `json:"health_status"`
	HealthDetail    json.RawMessage `json:"health_detail,omitempty"`

	Tags  []string `json:"tags,omitempty"`
	Notes *string  `json:"notes,omitempty"`

	DeployedBy string  `json:"deployed_by"`
	ApprovedBy *string `json:"approved_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
