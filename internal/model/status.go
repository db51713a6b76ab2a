package model

// Instance deployment states.
const (
	StatePending      = "pending"
	StateProvisioning = "provisioning"
	StateActive       = "active"
	StateDegraded     = "degraded"
	StateUpgrading    = "upgrading"
	StateSuspending   = "suspending"
	StateSuspended    = "suspended"
	StateResuming     = "resuming"
	StateRollingBack  = "rolling_back"
	StateDestroying   = "destroying"
	StateDestroyed    = "destroyed"
	StateFailed       = "failed"
)

// Lifecycle operations.
const (
	OpProvision   = "provision"
	OpUpgrade     = "upgrade"
	OpScale       = "scale"
	OpSuspend     = "suspend"
	OpResume      = "resume"
	OpDestroy     = "destroy"
	OpRollback    = "rollback"
	OpHealthCheck = "health_check"
)

// Execution run states.
const (
	ExecutionRunning   = "running"
	ExecutionSucceeded = "succeeded"
	ExecutionFailed    = "failed"
)

// Execution results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultTimeout = "timeout"
)

// Execution trigger types.
const (
	TriggerManual    = "manual"
	TriggerAutomated = "automated"
)

// Health statuses.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
	HealthUnknown   = "unknown"
)

// transientStates maps each mutating operation to the state an instance
// holds while that operation's execution is running. Scale and health_check
// never change the primary state.
var transientStates = map[string]string{
	OpProvision: StateProvisioning,
	OpUpgrade:   StateUpgrading,
	OpSuspend:   StateSuspending,
	OpResume:    StateResuming,
	OpDestroy:   StateDestroying,
	OpRollback:  StateRollingBack,
}

// TransientState returns the in-flight state for an operation, or "" if the
// operation does not move the instance through a transient state.
func TransientState(op string) string {
	return transientStates[op]
}

// allowedStates maps each operation to the instance states it may legally
// start from.
var allowedStates = map[string][]string{
	OpProvision:   {StatePending},
	OpUpgrade:     {StateActive, StateDegraded},
	OpScale:       {StateActive, StateDegraded},
	OpSuspend:     {StateActive, StateDegraded},
	OpResume:      {StateSuspended},
	OpDestroy:     {StateActive, StateDegraded, StateSuspended, StateFailed},
	OpRollback:    {StateUpgrading, StateFailed},
	OpHealthCheck: {StateActive, StateDegraded, StateSuspended},
}

// CanTransition reports whether op may be started against an instance in the
// given state.
func CanTransition(state, op string) bool {
	for _, s := range allowedStates[op] {
		if s == state {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state permits no further lifecycle
// operations.
func IsTerminal(state string) bool {
	return state == StateDestroyed
}
