package model

import (
	"encoding/json"
	"time"
)

// HealthRecord is a point-in-time observation of an instance's health.
// Records are append-only and pruned by age.
type HealthRecord struct {
	ID         string `json:"id"`
	InstanceID string `json:"instance_id"`
	CheckType  string `json:"check_type"`

	Endpoint       *string  `json:"endpoint,omitempty"`
	Status         string   `json:"status"`
	ResponseTimeMS *float64 `json:"response_time_ms,omitempty"`

	Metrics      json.RawMessage `json:"metrics,omitempty"`
	Details      *string         `json:"details,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Alerts       []string        `json:"alerts,omitempty"`

	CheckedAt time.Time `json:"checked_at"`
}
