package adapter

import (
	"context"
	"time"
)

// Context carries everything a backend needs to perform one lifecycle
// operation. It is assembled by the orchestrator from the instance, its
// template, and the operation parameters; adapters never read the registry.
type Context struct {
	TenantID    string
	InstanceID  string
	ExecutionID string
	Operation   string

	TemplateName    string
	TemplateVersion string

	Config map[string]any

	// Secrets holds the template's required secrets resolved from the
	// orchestrator's environment at dispatch time. Adapters hand them to the
	// backend and must never log them.
	Secrets map[string]string

	CPUCores  float64
	MemoryGB  int
	StorageGB int

	Environment string
	Region      string
	Namespace   string
	ClusterName string

	// BackendID is the backend's identifier for an existing deployment
	// (helm release, AWX inventory, container id, terraform workspace).
	// Empty on provision.
	BackendID string

	FromVersion string
	ToVersion   string

	// Artifact locators from the template.
	ChartURL        string
	ChartVersion    string
	PlaybookPath    string
	ModulePath      string
	ComposeFilePath string

	Tags  []string
	Actor string

	// Reason is the caller-supplied justification for suspend, resume, and
	// destroy. BackupData asks the backend to snapshot data before a destroy.
	Reason     string
	BackupData bool
}

// ReleaseName derives the backend deployment name for this instance.
// Stable across operations so upgrades address the artifact provision
// created.
func (c *Context) ReleaseName() string {
	return c.TenantID + "-" + c.Environment
}

// Result describes the outcome of one backend operation. Expected backend
// failures are reported with Success=false; adapters return a non-nil error
// only for transport-level faults.
type Result struct {
	Success     bool
	CompletedAt time.Time

	BackendJobID  string
	BackendJobURL string
	Logs          string

	Endpoints map[string]string
	Metadata  map[string]any
	Message   string
}

// HealthResult describes one health observation of a deployment.
type HealthResult struct {
	Status       string
	Endpoint     string
	ResponseTime time.Duration
	Metrics      map[string]float64
	Details      string
	Message      string
}

// Adapter is the capability set every backend implements. Operations are
// synchronous from the caller's perspective: they return once the backend
// reports a terminal outcome or ctx expires.
type Adapter interface {
	Provision(ctx context.Context, ec *Context) (*Result, error)
	Upgrade(ctx context.Context, ec *Context) (*Result, error)
	Scale(ctx context.Context, ec *Context) (*Result, error)
	Suspend(ctx context.Context, ec *Context) (*Result, error)
	Resume(ctx context.Context, ec *Context) (*Result, error)
	Destroy(ctx context.Context, ec *Context) (*Result, error)
	Rollback(ctx context.Context, ec *Context) (*Result, error)
	HealthCheck(ctx context.Context, ec *Context) (*HealthResult, error)
}

func success(message string) *Result {
	return &Result{
		Success:     true,
		CompletedAt: time.Now(),
		Message:     message,
	}
}

func failure(message string) *Result {
	return &Result{
		Success:     false,
		CompletedAt: time.Now(),
		Message:     message,
	}
}
