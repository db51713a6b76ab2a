package request

import "encoding/json"

type CreateTemplate struct {
	Name           string `json:"name" validate:"required,slug"`
	BackendKind    string `json:"backend_kind" validate:"required,oneof=kubernetes awx compose terraform manual"`
	DeploymentType string `json:"deployment_type" validate:"required,oneof=shared dedicated onprem hybrid edge"`
	Version        string `json:"version" validate:"required,max=64"`

	MinCPUCores  float64 `json:"min_cpu_cores" validate:"omitempty,min=0"`
	MinMemoryGB  int     `json:"min_memory_gb" validate:"omitempty,min=0"`
	MinStorageGB int     `json:"min_storage_gb" validate:"omitempty,min=0"`
	MaxUsers     int     `json:"max_users" validate:"omitempty,min=1"`

	VariablesSchema json.RawMessage `json:"variables_schema"`
	DefaultConfig   json.RawMessage `json:"default_config"`
	RequiredSecrets []string        `json:"required_secrets"`
	DefaultFeatures json.RawMessage `json:"default_features"`

	ChartURL        string `json:"chart_url" validate:"omitempty,max=512"`
	ChartVersion    string `json:"chart_version" validate:"omitempty,max=64"`
	PlaybookPath    string `json:"playbook_path" validate:"omitempty,max=512"`
	ModulePath      string `json:"module_path" validate:"omitempty,max=512"`
	ComposeFilePath string `json:"compose_file_path" validate:"omitempty,max=512"`

	RequiresApproval *bool `json:"requires_approval"`
	EstimatedMinutes int   `json:"estimated_minutes" validate:"omitempty,min=1,max=1440"`
}

type UpdateTemplate struct {
	Version *string `json:"version" validate:"omitempty,max=64"`

	MinCPUCores  *float64 `json:"min_cpu_cores" validate:"omitempty,min=0"`
	MinMemoryGB  *int     `json:"min_memory_gb" validate:"omitempty,min=0"`
	MinStorageGB *int     `json:"min_storage_gb" validate:"omitempty,min=0"`
	MaxUsers     *int     `json:"max_users" validate:"omitempty,min=1"`

	VariablesSchema json.RawMessage `json:"variables_schema"`
	DefaultConfig   json.RawMessage `json:"default_config"`
	RequiredSecrets []string        `json:"required_secrets"`
	DefaultFeatures json.RawMessage `json:"default_features"`

	ChartURL        *string `json:"chart_url" validate:"omitempty,max=512"`
	ChartVersion    *string `json:"chart_version" validate:"omitempty,max=64"`
	PlaybookPath    *string `json:"playbook_path" validate:"omitempty,max=512"`
	ModulePath      *string `json:"module_path" validate:"omitempty,max=512"`
	ComposeFilePath *string `json:"compose_file_path" validate:"omitempty,max=512"`

	RequiresApproval *bool `json:"requires_approval"`
	EstimatedMinutes *int  `json:"estimated_minutes" validate:"omitempty,min=1,max=1440"`
}
