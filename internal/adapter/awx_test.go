package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/deployhub/internal/config"
	"github.com/edvin/deployhub/internal/model"
)

// fakeAWX serves the slice of the AWX API the adapter touches: job template
// lookup by name, launch, job polling, and stdout.
func fakeAWX(t *testing.T, finalStatus string, pollsUntilDone int32) *httptest.Server {
	t.Helper()

	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/job_templates/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{"id": 42, "status": "pending"})
			return
		}
		assert.Equal(t, "deploy-tenant", r.URL.Query().Get("name"))
		json.NewEncoder(w).Encode(map[string]any{
			"count":   1,
			"results": []map[string]any{{"id": 7}},
		})
	})
	mux.HandleFunc("/api/v2/jobs/42/", func(w http.ResponseWriter, r *http.Request) {
		status := "running"
		if atomic.AddInt32(&polls, 1) >= pollsUntilDone {
			status = finalStatus
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      42,
			"status":  status,
			"elapsed": 3.5,
		})
	})
	mux.HandleFunc("/api/v2/jobs/42/stdout/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("PLAY RECAP ok=5 failed=0"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func awxForServer(t *testing.T, srv *httptest.Server) *AWXAdapter {
	t.Helper()
	a, err := NewAWXAdapter(&config.Config{
		AWXURL:          srv.URL,
		AWXToken:        "token",
		AWXPollInterval: time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)
	return a
}

func TestAWXAdapter_Provision_Succeeds(t *testing.T) {
	srv := fakeAWX(t, "successful", 3)
	a := awxForServer(t, srv)

	res, err := a.Provision(context.Background(), &Context{
		TenantID:     "acme",
		InstanceID:   "inst-1",
		PlaybookPath: "deploy-tenant",
		ToVersion:    "2.0.0",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "42", res.BackendJobID)
	assert.Contains(t, res.BackendJobURL, "/#/jobs/playbook/42")
	assert.Contains(t, res.Logs, "PLAY RECAP")
}

func TestAWXAdapter_Upgrade_JobFails(t *testing.T) {
	srv := fakeAWX(t, "failed", 1)
	a := awxForServer(t, srv)

	res, err := a.Upgrade(context.Background(), &Context{
		PlaybookPath: "deploy-tenant",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "failed")
}

func TestAWXAdapter_Provision_TemplateNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/job_templates/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"count": 0, "results": []any{}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := awxForServer(t, srv)
	_, err := a.Provision(context.Background(), &Context{PlaybookPath: "missing"})
	assert.ErrorContains(t, err, "not found")
}

func TestAWXAdapter_Provision_DeadlineExpires(t *testing.T) {
	srv := fakeAWX(t, "successful", 1_000_000)
	a := awxForServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := a.Provision(ctx, &Context{PlaybookPath: "deploy-tenant"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAWXAdapter_HealthCheck_MapsJobOutcome(t *testing.T) {
	srv := fakeAWX(t, "successful", 1)
	a := awxForServer(t, srv)

	hr, err := a.HealthCheck(context.Background(), &Context{PlaybookPath: "deploy-tenant"})
	require.NoError(t, err)
	assert.Equal(t, model.HealthHealthy, hr.Status)
	assert.Greater(t, hr.ResponseTime, time.Duration(0))
}
