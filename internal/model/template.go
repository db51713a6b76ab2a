package model

import (
	"encoding/json"
	"time"
)

// Template is a named, versioned deployment blueprint. Instances reference a
// template by ID; the template's backend kind selects the adapter used for
// every lifecycle operation.
type Template struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	BackendKind    string `json:"backend_kind"`
	DeploymentType string `json:"deployment_type"`
	Version        string `json:"version"`

	// Minimum resource hints. Instance allocations never go below these.
	MinCPUCores  float64 `json:"min_cpu_cores"`
	MinMemoryGB  int     `json:"min_memory_gb"`
	MinStorageGB int     `json:"min_storage_gb"`
	MaxUsers     int     `json:"max_users"`

	VariablesSchema json.RawMessage `json:"variables_schema,omitempty"`
	DefaultConfig   json.RawMessage `json:"default_config,omitempty"`
	RequiredSecrets []string        `json:"required_secrets,omitempty"`
	DefaultFeatures json.RawMessage `json:"default_features,omitempty"`

	// Backend-specific artifact locators. Only the locator matching the
	// backend kind is consulted by the adapter.
	ChartURL        string `json:"chart_url,omitempty"`
	ChartVersion    string `json:"chart_version,omitempty"`
	PlaybookPath    string `json:"playbook_path,omitempty"`
	ModulePath      string `json:"module_path,omitempty"`
	ComposeFilePath string `json:"compose_file_path,omitempty"`

	Active           bool `json:"active"`
	RequiresApproval bool `json:"requires_approval"`
	EstimatedMinutes int  `json:"estimated_minutes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OperationTimeout returns the execution timeout for operations against this
// template, falling back to def when the template carries no estimate.
func (t *Template) OperationTimeout(def time.Duration) time.Duration {
	if t.EstimatedMinutes <= 0 {
		return def
	}
	return time.Duration(t.EstimatedMinutes) * time.Minute
}
