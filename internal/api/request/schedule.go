package request

import "time"

type CreateSchedule struct {
	// InstanceID targets an existing instance; Provision describes a new
	// one. Provision operations carry the latter, everything else the
	// former.
	InstanceID string             `json:"instance_id" validate:"required_without=Provision"`
	Provision  *ProvisionInstance `json:"provision" validate:"omitempty"`

	Operation string `json:"operation" validate:"required,oneof=provision upgrade suspend resume destroy rollback health_check"`
	ToVersion string `json:"to_version" validate:"omitempty,max=64"`

	// Exactly one of the following selects the firing policy. The bridge
	// rejects requests that set zero or more than one.
	ScheduledAt     *time.Time `json:"scheduled_at"`
	CronExpression  string     `json:"cron_expression" validate:"omitempty,max=128"`
	IntervalSeconds int        `json:"interval_seconds" validate:"omitempty,min=1,max=604800"`
}
