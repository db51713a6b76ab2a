package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	a := NewID()
	b := NewID()

	require.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestNewName(t *testing.T) {
	name := NewName("sched-")

	require.True(t, strings.HasPrefix(name, "sched-"))
	assert.Len(t, name, len("sched-")+10)

	for _, c := range strings.TrimPrefix(name, "sched-") {
		assert.Contains(t, shortNameAlphabet, string(c))
	}
}
