package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCompose = `
services:
  app:
    image: registry.example.com/acme/app:${VERSION}
    environment:
      TENANT: ${TENANT_ID}
      ENV: ${ENVIRONMENT}
    ports:
      - "8080:80"
  worker:
    image: registry.example.com/acme/worker:${VERSION}
    command: ["run", "--queue", "default"]
`

func writeComposeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "compose.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestComposeAdapter_LoadComposeFile(t *testing.T) {
	c := &ComposeAdapter{}
	ec := &Context{
		TenantID:        "acme",
		Environment:     "production",
		ComposeFilePath: writeComposeFile(t, sampleCompose),
	}

	cf, err := c.loadComposeFile(ec, "2.1.0")
	require.NoError(t, err)
	require.Len(t, cf.Services, 2)

	app := cf.Services["app"]
	assert.Equal(t, "registry.example.com/acme/app:2.1.0", app.Image)
	assert.Equal(t, "acme", app.Environment["TENANT"])
	assert.Equal(t, "production", app.Environment["ENV"])
	assert.Equal(t, []string{"8080:80"}, app.Ports)

	worker := cf.Services["worker"]
	assert.Equal(t, []string{"run", "--queue", "default"}, worker.Command)
}

func TestComposeAdapter_LoadComposeFile_NoServices(t *testing.T) {
	c := &ComposeAdapter{}
	ec := &Context{ComposeFilePath: writeComposeFile(t, "services: {}\n")}

	_, err := c.loadComposeFile(ec, "1.0.0")
	assert.ErrorContains(t, err, "defines no services")
}

func TestComposeAdapter_LoadComposeFile_Missing(t *testing.T) {
	c := &ComposeAdapter{}
	ec := &Context{ComposeFilePath: "/nonexistent/compose.yaml"}

	_, err := c.loadComposeFile(ec, "1.0.0")
	assert.ErrorContains(t, err, "read compose file")
}
