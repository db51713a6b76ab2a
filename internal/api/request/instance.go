package request

import "encoding/json"

type ProvisionInstance struct {
	TenantID    string `json:"tenant_id" validate:"required,max=64"`
	TemplateID  string `json:"template_id" validate:"required"`
	Environment string `json:"environment" validate:"required,slug"`
	Region      string `json:"region" validate:"omitempty,max=64"`

	Config json.RawMessage `json:"config"`

	CPUCores  float64 `json:"cpu_cores" validate:"omitempty,min=0"`
	MemoryGB  int     `json:"memory_gb" validate:"omitempty,min=0"`
	StorageGB int     `json:"storage_gb" validate:"omitempty,min=0"`

	Tags       []string `json:"tags" validate:"omitempty,dive,max=64"`
	ApprovedBy *string  `json:"approved_by"`
}

type UpgradeInstance struct {
	ToVersion     string          `json:"to_version" validate:"required,max=64"`
	ConfigUpdates json.RawMessage `json:"config_updates"`

	// RollbackOnFailure defaults to true: a failed upgrade redeploys the
	// last good version unless the caller opts out.
	RollbackOnFailure *bool `json:"rollback_on_failure"`
}

type LifecycleInstance struct {
	Reason string `json:"reason" validate:"omitempty,max=512"`
}

type DestroyInstance struct {
	Reason string `json:"reason" validate:"omitempty,max=512"`

	// BackupData defaults to true.
	BackupData *bool `json:"backup_data"`
}

type ScaleInstance struct {
	CPUCores  float64 `json:"cpu_cores" validate:"required,min=0.1"`
	MemoryGB  int     `json:"memory_gb" validate:"required,min=1"`
	StorageGB int     `json:"storage_gb" validate:"required,min=1"`
}

type RollbackInstance struct {
	// ExecutionID names the failed execution to reverse. When empty the
	// most recent failed execution is used.
	ExecutionID string `json:"execution_id"`
}
