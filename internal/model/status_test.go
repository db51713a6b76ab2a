package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransientState(t *testing.T) {
	assert.Equal(t, StateProvisioning, TransientState(OpProvision))
	assert.Equal(t, StateUpgrading, TransientState(OpUpgrade))
	assert.Equal(t, StateSuspending, TransientState(OpSuspend))
	assert.Equal(t, StateResuming, TransientState(OpResume))
	assert.Equal(t, StateDestroying, TransientState(OpDestroy))
	assert.Equal(t, StateRollingBack, TransientState(OpRollback))

	// Scale and health checks leave the primary state untouched.
	assert.Empty(t, TransientState(OpScale))
	assert.Empty(t, TransientState(OpHealthCheck))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatePending, OpProvision))
	assert.True(t, CanTransition(StateActive, OpUpgrade))
	assert.True(t, CanTransition(StateDegraded, OpUpgrade))
	assert.True(t, CanTransition(StateSuspended, OpResume))
	assert.True(t, CanTransition(StateFailed, OpDestroy))
	assert.True(t, CanTransition(StateFailed, OpRollback))

	assert.False(t, CanTransition(StateActive, OpProvision))
	assert.False(t, CanTransition(StateSuspended, OpUpgrade))
	assert.False(t, CanTransition(StateActive, OpResume))
	assert.False(t, CanTransition(StateDestroyed, OpDestroy))
	assert.False(t, CanTransition(StatePending, OpUpgrade))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StateDestroyed))
	assert.False(t, IsTerminal(StateFailed))
	assert.False(t, IsTerminal(StateActive))
}

func TestKnownBackend(t *testing.T) {
	for _, kind := range []string{BackendKubernetes, BackendAWX, BackendCompose, BackendTerraform, BackendManual} {
		assert.True(t, KnownBackend(kind))
	}
	assert.False(t, KnownBackend("cloudformation"))
}
