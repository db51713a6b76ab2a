package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/edvin/deployhub/internal/config"
	"github.com/edvin/deployhub/internal/model"
)

// AWXAdapter drives deployments through AWX job templates. The deployment
// template's playbook path names the AWX job template; every operation
// launches it with the operation passed in extra_vars and polls the job
// until it reaches a terminal status.
type AWXAdapter struct {
	baseURL      string
	token        string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       zerolog.Logger
}

func NewAWXAdapter(cfg *config.Config, logger zerolog.Logger) (*AWXAdapter, error) {
	if cfg.AWXURL == "" {
		return nil, errors.New("AWX_URL is not configured")
	}
	return &AWXAdapter{
		baseURL:      cfg.AWXURL,
		token:        cfg.AWXToken,
		pollInterval: cfg.AWXPollInterval,
		httpClient:   &http.Client{},
		logger:       logger.With().Str("adapter", model.BackendAWX).Logger(),
	}, nil
}

type awxJob struct {
	ID       int64   `json:"id"`
	Status   string  `json:"status"`
	Failed   bool    `json:"failed"`
	URL      string  `json:"url"`
	Elapsed  float64 `json:"elapsed"`
	JobError string  `json:"job_explanation"`
}

func (a *AWXAdapter) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal awx payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("awx request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("awx %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("awx %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode awx response %s: %w", path, err)
		}
	}
	return nil
}

// jobTemplateID resolves the AWX job template named by the deployment
// template's playbook path.
func (a *AWXAdapter) jobTemplateID(ctx context.Context, name string) (int64, error) {
	var result struct {
		Count   int `json:"count"`
		Results []struct {
			ID int64 `json:"id"`
		} `json:"results"`
	}
	path := "/api/v2/job_templates/?name=" + url.QueryEscape(name)
	if err := a.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return 0, err
	}
	if result.Count == 0 {
		return 0, fmt.Errorf("awx job template %q not found", name)
	}
	return result.Results[0].ID, nil
}

func (a *AWXAdapter) launch(ctx context.Context, ec *Context, operation string) (*awxJob, error) {
	templateID, err := a.jobTemplateID(ctx, ec.PlaybookPath)
	if err != nil {
		return nil, err
	}

	extraVars := map[string]any{
		"deploy_operation": operation,
		"tenant_id":        ec.TenantID,
		"instance_id":      ec.InstanceID,
		"environment":      ec.Environment,
		"from_version":     ec.FromVersion,
		"to_version":       ec.ToVersion,
		"cpu_cores":        ec.CPUCores,
		"memory_gb":        ec.MemoryGB,
		"storage_gb":       ec.StorageGB,
		"config":           ec.Config,
	}

	var job awxJob
	path := fmt.Sprintf("/api/v2/job_templates/%d/launch/", templateID)
	if err := a.do(ctx, http.MethodPost, path, map[string]any{"extra_vars": extraVars}, &job); err != nil {
		return nil, err
	}

	a.logger.Info().
		Int64("job_id", job.ID).
		Str("operation", operation).
		Str("instance_id", ec.InstanceID).
		Msg("launched awx job")
	return &job, nil
}

// waitForJob polls the job until AWX reports a terminal status. The operation
// deadline on ctx bounds the wait.
func (a *AWXAdapter) waitForJob(ctx context.Context, jobID int64) (*awxJob, error) {
	var job awxJob
	backoff := retry.NewConstant(a.pollInterval)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		path := fmt.Sprintf("/api/v2/jobs/%d/", jobID)
		if err := a.do(ctx, http.MethodGet, path, nil, &job); err != nil {
			return retry.RetryableError(err)
		}
		switch job.Status {
		case "successful", "failed", "error", "canceled":
			return nil
		default:
			return retry.RetryableError(fmt.Errorf("awx job %d still %s", jobID, job.Status))
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return &job, nil
}

func (a *AWXAdapter) jobStdout(ctx context.Context, jobID int64) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v2/jobs/%d/stdout/?format=txt", a.baseURL, jobID), nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return ""
	}
	out, _ := io.ReadAll(resp.Body)
	return string(out)
}

func (a *AWXAdapter) run(ctx context.Context, ec *Context, operation string) (*Result, error) {
	job, err := a.launch(ctx, ec, operation)
	if err != nil {
		return nil, err
	}

	done, err := a.waitForJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Success:      done.Status == "successful",
		CompletedAt:  time.Now().UTC(),
		BackendJobID: fmt.Sprintf("%d", done.ID),
		BackendJobURL: fmt.Sprintf("%s/#/jobs/playbook/%d", a.baseURL, done.ID),
		Logs:         a.jobStdout(ctx, done.ID),
		Metadata: map[string]any{
			"status":  done.Status,
			"elapsed": done.Elapsed,
		},
	}
	if res.Success {
		res.Message = fmt.Sprintf("awx job %d succeeded", done.ID)
	} else {
		res.Message = fmt.Sprintf("awx job %d %s: %s", done.ID, done.Status, done.JobError)
	}
	return res, nil
}

func (a *AWXAdapter) Provision(ctx context.Context, ec *Context) (*Result, error) {
	return a.run(ctx, ec, model.OpProvision)
}

func (a *AWXAdapter) Upgrade(ctx context.Context, ec *Context) (*Result, error) {
	return a.run(ctx, ec, model.OpUpgrade)
}

func (a *AWXAdapter) Scale(ctx context.Context, ec *Context) (*Result, error) {
	return a.run(ctx, ec, model.OpScale)
}

func (a *AWXAdapter) Suspend(ctx context.Context, ec *Context) (*Result, error) {
	return a.run(ctx, ec, model.OpSuspend)
}

func (a *AWXAdapter) Resume(ctx context.Context, ec *Context) (*Result, error) {
	return a.run(ctx, ec, model.OpResume)
}

func (a *AWXAdapter) Destroy(ctx context.Context, ec *Context) (*Result, error) {
	return a.run(ctx, ec, model.OpDestroy)
}

func (a *AWXAdapter) Rollback(ctx context.Context, ec *Context) (*Result, error) {
	return a.run(ctx, ec, model.OpRollback)
}

// HealthCheck runs the job template in check mode and maps the job outcome
// onto a health status.
func (a *AWXAdapter) HealthCheck(ctx context.Context, ec *Context) (*HealthResult, error) {
	start := time.Now()
	res, err := a.run(ctx, ec, model.OpHealthCheck)
	if err != nil {
		return nil, err
	}

	status := model.HealthUnhealthy
	if res.Success {
		status = model.HealthHealthy
	}
	return &HealthResult{
		Status:       status,
		ResponseTime: time.Since(start),
		Details:      res.Message,
		Message:      res.Message,
	}, nil
}

var _ Adapter = (*AWXAdapter)(nil)
