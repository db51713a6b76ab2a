package model

import (
	"encoding/json"
	"time"
)

// Execution is the audit record of one lifecycle operation performed against
// an instance. At most one execution per instance is in the running state at
// any time; executions are append-only once completed.
type Execution struct {
	ID         string `json:"id"`
	InstanceID string `json:"instance_id"`
	Operation  string `json:"operation"`
	State      string `json:"state"`

	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`

	BackendJobID  *string `json:"backend_job_id,omitempty"`
	BackendJobURL *string `json:"backend_job_url,omitempty"`
	Logs          *string `json:"logs,omitempty"`

	// Config is the operation-specific configuration snapshot.
	Config json.RawMessage `json:"config,omitempty"`

	FromVersion *string `json:"from_version,omitempty"`
	ToVersion   *string `json:"to_version,omitempty"`

	Result       *string `json:"result,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`

	// RollbackOfID links a rollback execution to the failed execution it
	// reverses.
	RollbackOfID *string `json:"rollback_of_id,omitempty"`

	Actor       string `json:"actor"`
	TriggerType string `json:"trigger_type"`

	CreatedAt time.Time `json:"created_at"`
}
