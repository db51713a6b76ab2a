package adapter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/deployhub/internal/config"
	"github.com/edvin/deployhub/internal/model"
)

func terraformForDir(t *testing.T, dir string) *TerraformAdapter {
	t.Helper()
	a, err := NewTerraformAdapter(&config.Config{
		TerraformBin:     "terraform",
		TerraformWorkdir: dir,
	}, zerolog.Nop())
	require.NoError(t, err)
	return a
}

func TestTerraformAdapter_WriteVarsFile(t *testing.T) {
	root := t.TempDir()
	a := terraformForDir(t, root)

	ec := &Context{
		TenantID:   "acme",
		InstanceID: "inst-1",
		Environment: "production",
		Region:      "eu-west-1",
		CPUCores:    2,
		MemoryGB:    8,
		StorageGB:   100,
		Config:      map[string]any{"vpc_cidr": "10.0.0.0/16"},
	}

	dir, err := a.writeVarsFile(ec, "1.4.0")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "inst-1"), dir)

	raw, err := os.ReadFile(filepath.Join(dir, "terraform.tfvars.json"))
	require.NoError(t, err)

	var vars map[string]any
	require.NoError(t, json.Unmarshal(raw, &vars))
	assert.Equal(t, "acme", vars["tenant_id"])
	assert.Equal(t, "1.4.0", vars["version"])
	assert.Equal(t, "10.0.0.0/16", vars["vpc_cidr"])
	assert.Equal(t, float64(8), vars["memory_gb"])
}

func TestTerraformAdapter_Destroy_NoState(t *testing.T) {
	a := terraformForDir(t, t.TempDir())

	res, err := a.Destroy(context.Background(), &Context{InstanceID: "inst-gone"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "nothing to destroy")
}

func TestTerraformAdapter_HealthCheck_NoState(t *testing.T) {
	a := terraformForDir(t, t.TempDir())

	hr, err := a.HealthCheck(context.Background(), &Context{InstanceID: "inst-gone"})
	require.NoError(t, err)
	assert.Equal(t, model.HealthUnknown, hr.Status)
}
