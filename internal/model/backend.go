package model

// Backend kinds. Each kind has exactly one adapter implementation.
const (
	BackendKubernetes = "kubernetes"
	BackendAWX        = "awx"
	BackendCompose    = "compose"
	BackendTerraform  = "terraform"
	BackendManual     = "manual"
)

// Deployment types.
const (
	DeploymentShared    = "shared"
	DeploymentDedicated = "dedicated"
	DeploymentOnPrem    = "onprem"
	DeploymentHybrid    = "hybrid"
	DeploymentEdge      = "edge"
)

// KnownBackend reports whether kind names a supported backend.
func KnownBackend(kind string) bool {
	switch kind {
	case BackendKubernetes, BackendAWX, BackendCompose, BackendTerraform, BackendManual:
		return true
	}
	return false
}
