package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/deployhub/internal/model"
)

type InstanceService struct {
	db DB
}

func NewInstanceService(db DB) *InstanceService {
	return &InstanceService{db: db}
}

const instanceColumns = `id, tenant_id, template_id, environment, region,
	state, state_reason, last_state_change, config, version, endpoints,
	namespace, cluster_name, backend_id, cpu_cores, memory_gb, storage_gb,
	last_health_check, health_status, health_detail, tags, notes,
	deployed_by, approved_by, created_at, updated_at`

func (s *InstanceService) Create(ctx context.Context, inst *model.Instance) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO instances (id, tenant_id, template_id, environment, region,
		 state, state_reason, last_state_change, config, version, endpoints,
		 namespace, cluster_name, backend_id, cpu_cores, memory_gb, storage_gb,
		 last_health_check, health_status, health_detail, tags, notes,
		 deployed_by, approved_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`,
		inst.ID, inst.TenantID, inst.TemplateID, inst.Environment, inst.Region,
		inst.State, inst.StateReason, inst.LastStateChange, inst.Config, inst.Version, inst.Endpoints,
		inst.Namespace, inst.ClusterName, inst.BackendID, inst.CPUCores, inst.MemoryGB, inst.StorageGB,
		inst.LastHealthCheck, inst.HealthStatus, inst.HealthDetail, inst.Tags, inst.Notes,
		inst.DeployedBy, inst.ApprovedBy, inst.CreatedAt, inst.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

func (s *InstanceService) scanRow(row pgx.Row) (*model.Instance, error) {
	var i model.Instance
	err := row.Scan(&i.ID, &i.TenantID, &i.TemplateID, &i.Environment, &i.Region,
		&i.State, &i.StateReason, &i.LastStateChange, &i.Config, &i.Version, &i.Endpoints,
		&i.Namespace, &i.ClusterName, &i.BackendID, &i.CPUCores, &i.MemoryGB, &i.StorageGB,
		&i.LastHealthCheck, &i.HealthStatus, &i.HealthDetail, &i.Tags, &i.Notes,
		&i.DeployedBy, &i.ApprovedBy, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

// GetByID returns the instance or nil when no such instance exists.
func (s *InstanceService) GetByID(ctx context.Context, id string) (*model.Instance, error) {
	inst, err := s.scanRow(s.db.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get instance %s: %w", id, err)
	}
	return inst, nil
}

// GetByTenantEnv returns the tenant's non-destroyed instance in the given
// environment, or nil when the slot is free.
func (s *InstanceService) GetByTenantEnv(ctx context.Context, tenantID, environment string) (*model.Instance, error) {
	inst, err := s.scanRow(s.db.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM instances
		 WHERE tenant_id = $1 AND environment = $2 AND state != $3`,
		tenantID, environment, model.StateDestroyed))
	if err != nil {
		return nil, fmt.Errorf("get instance for tenant %s env %s: %w", tenantID, environment, err)
	}
	return inst, nil
}

// ListParams filters instance listings. Zero values mean "no filter".
type ListParams struct {
	TenantID   string
	TemplateID string
	State      string
	Limit      int
	Cursor     string
}

func (s *InstanceService) List(ctx context.Context, params ListParams) ([]model.Instance, bool, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE state != '` + model.StateDestroyed + `'`
	args := []any{}
	argIdx := 1

	if params.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, argIdx)
		args = append(args, params.TenantID)
		argIdx++
	}
	if params.TemplateID != "" {
		query += fmt.Sprintf(` AND template_id = $%d`, argIdx)
		args = append(args, params.TemplateID)
		argIdx++
	}
	if params.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, params.State)
		argIdx++
	}
	if params.Cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, params.Cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, params.Limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		var i model.Instance
		if err := rows.Scan(&i.ID, &i.TenantID, &i.TemplateID, &i.Environment, &i.Region,
			&i.State, &i.StateReason, &i.LastStateChange, &i.Config, &i.Version, &i.Endpoints,
			&i.Namespace, &i.ClusterName, &i.BackendID, &i.CPUCores, &i.MemoryGB, &i.StorageGB,
			&i.LastHealthCheck, &i.HealthStatus, &i.HealthDetail, &i.Tags, &i.Notes,
			&i.DeployedBy, &i.ApprovedBy, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, false, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, i)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate instances: %w", err)
	}

	hasMore := len(instances) > params.Limit
	if hasMore {
		instances = instances[:params.Limit]
	}
	return instances, hasMore, nil
}

// ListByStates returns all instances in any of the given states. Used by the
// health monitor sweep; not paginated.
func (s *InstanceService) ListByStates(ctx context.Context, states []string) ([]model.Instance, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE state = ANY($1) ORDER BY id`, states)
	if err != nil {
		return nil, fmt.Errorf("list instances by state: %w", err)
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		var i model.Instance
		if err := rows.Scan(&i.ID, &i.TenantID, &i.TemplateID, &i.Environment, &i.Region,
			&i.State, &i.StateReason, &i.LastStateChange, &i.Config, &i.Version, &i.Endpoints,
			&i.Namespace, &i.ClusterName, &i.BackendID, &i.CPUCores, &i.MemoryGB, &i.StorageGB,
			&i.LastHealthCheck, &i.HealthStatus, &i.HealthDetail, &i.Tags, &i.Notes,
			&i.DeployedBy, &i.ApprovedBy, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return instances, nil
}

// Update persists all mutable instance fields.
func (s *InstanceService) Update(ctx context.Context, inst *model.Instance) error {
	_, err := s.db.Exec(ctx,
		`UPDATE instances SET region = $1, config = $2, version = $3, endpoints = $4,
		 namespace = $5, cluster_name = $6, backend_id = $7,
		 cpu_cores = $8, memory_gb = $9, storage_gb = $10,
		 tags = $11, notes = $12, approved_by = $13, updated_at = now()
		 WHERE id = $14`,
		inst.Region, inst.Config, inst.Version, inst.Endpoints,
		inst.Namespace, inst.ClusterName, inst.BackendID,
		inst.CPUCores, inst.MemoryGB, inst.StorageGB,
		inst.Tags, inst.Notes, inst.ApprovedBy, inst.ID,
	)
	if err != nil {
		return fmt.Errorf("update instance %s: %w", inst.ID, err)
	}
	return nil
}

// UpdateState transitions the instance and stamps last_state_change.
func (s *InstanceService) UpdateState(ctx context.Context, id, state string, reason *string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE instances SET state = $1, state_reason = $2, last_state_change = now(), updated_at = now()
		 WHERE id = $3`,
		state, reason, id,
	)
	if err != nil {
		return fmt.Errorf("set instance %s state to %s: %w", id, state, err)
	}
	return nil
}

// UpdateDeployment records the outcome of a successful mutating execution:
// the deployed version, service endpoints, and backend locators.
func (s *InstanceService) UpdateDeployment(ctx context.Context, id, version string, endpoints map[string]string, backendID *string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE instances SET version = $1, endpoints = $2, backend_id = $3, updated_at = now()
		 WHERE id = $4`,
		version, endpoints, backendID, id,
	)
	if err != nil {
		return fmt.Errorf("update instance %s deployment: %w", id, err)
	}
	return nil
}

// UpdateConfig replaces the instance's effective config after an upgrade
// applied config updates.
func (s *InstanceService) UpdateConfig(ctx context.Context, id string, config json.RawMessage) error {
	_, err := s.db.Exec(ctx,
		`UPDATE instances SET config = $1, updated_at = now() WHERE id = $2`,
		config, id,
	)
	if err != nil {
		return fmt.Errorf("update instance %s config: %w", id, err)
	}
	return nil
}

// UpdateResources records a scale operation's new allocations.
func (s *InstanceService) UpdateResources(ctx context.Context, id string, cpuCores float64, memoryGB, storageGB int) error {
	_, err := s.db.Exec(ctx,
		`UPDATE instances SET cpu_cores = $1, memory_gb = $2, storage_gb = $3, updated_at = now()
		 WHERE id = $4`,
		cpuCores, memoryGB, storageGB, id,
	)
	if err != nil {
		return fmt.Errorf("update instance %s resources: %w", id, err)
	}
	return nil
}

// UpdateHealth records the latest health observation on the instance.
func (s *InstanceService) UpdateHealth(ctx context.Context, id, status string, detail []byte) error {
	_, err := s.db.Exec(ctx,
		`UPDATE instances SET health_status = $1, health_detail = $2, last_health_check = now(), updated_at = now()
		 WHERE id = $3`,
		status, detail, id,
	)
	if err != nil {
		return fmt.Errorf("update instance %s health: %w", id, err)
	}
	return nil
}
