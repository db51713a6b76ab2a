package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/deployhub/internal/model"
)

type TemplateService struct {
	db DB
}

func NewTemplateService(db DB) *TemplateService {
	return &TemplateService{db: db}
}

const templateColumns = `id, name, backend_kind, deployment_type, version,
	min_cpu_cores, min_memory_gb, min_storage_gb, max_users,
	variables_schema, default_config, required_secrets, default_features,
	chart_url, chart_version, playbook_path, module_path, compose_file_path,
	active, requires_approval, estimated_minutes, created_at, updated_at`

func (s *TemplateService) Create(ctx context.Context, tpl *model.Template) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO templates (id, name, backend_kind, deployment_type, version,
		 min_cpu_cores, min_memory_gb, min_storage_gb, max_users,
		 variables_schema, default_config, required_secrets, default_features,
		 chart_url, chart_version, playbook_path, module_path, compose_file_path,
		 active, requires_approval, estimated_minutes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		tpl.ID, tpl.Name, tpl.BackendKind, tpl.DeploymentType, tpl.Version,
		tpl.MinCPUCores, tpl.MinMemoryGB, tpl.MinStorageGB, tpl.MaxUsers,
		tpl.VariablesSchema, tpl.DefaultConfig, tpl.RequiredSecrets, tpl.DefaultFeatures,
		tpl.ChartURL, tpl.ChartVersion, tpl.PlaybookPath, tpl.ModulePath, tpl.ComposeFilePath,
		tpl.Active, tpl.RequiresApproval, tpl.EstimatedMinutes, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *TemplateService) scanRow(row pgx.Row) (*model.Template, error) {
	var t model.Template
	err := row.Scan(&t.ID, &t.Name, &t.BackendKind, &t.DeploymentType, &t.Version,
		&t.MinCPUCores, &t.MinMemoryGB, &t.MinStorageGB, &t.MaxUsers,
		&t.VariablesSchema, &t.DefaultConfig, &t.RequiredSecrets, &t.DefaultFeatures,
		&t.ChartURL, &t.ChartVersion, &t.PlaybookPath, &t.ModulePath, &t.ComposeFilePath,
		&t.Active, &t.RequiresApproval, &t.EstimatedMinutes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// GetByID returns the template or nil when no such template exists.
func (s *TemplateService) GetByID(ctx context.Context, id string) (*model.Template, error) {
	tpl, err := s.scanRow(s.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	return tpl, nil
}

// GetByName returns the template or nil when no such template exists.
func (s *TemplateService) GetByName(ctx context.Context, name string) (*model.Template, error) {
	tpl, err := s.scanRow(s.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE name = $1`, name))
	if err != nil {
		return nil, fmt.Errorf("get template by name %s: %w", name, err)
	}
	return tpl, nil
}

// List returns templates, optionally filtered to active ones, with cursor
// pagination over the ID.
func (s *TemplateService) List(ctx context.Context, activeOnly bool, limit int, cursor string) ([]model.Template, bool, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE 1=1`
	args := []any{}
	argIdx := 1

	if activeOnly {
		query += ` AND active`
	}
	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.BackendKind, &t.DeploymentType, &t.Version,
			&t.MinCPUCores, &t.MinMemoryGB, &t.MinStorageGB, &t.MaxUsers,
			&t.VariablesSchema, &t.DefaultConfig, &t.RequiredSecrets, &t.DefaultFeatures,
			&t.ChartURL, &t.ChartVersion, &t.PlaybookPath, &t.ModulePath, &t.ComposeFilePath,
			&t.Active, &t.RequiresApproval, &t.EstimatedMinutes, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, false, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate templates: %w", err)
	}

	hasMore := len(templates) > limit
	if hasMore {
		templates = templates[:limit]
	}
	return templates, hasMore, nil
}

func (s *TemplateService) Update(ctx context.Context, tpl *model.Template) error {
	_, err := s.db.Exec(ctx,
		`UPDATE templates SET deployment_type = $1, version = $2,
		 min_cpu_cores = $3, min_memory_gb = $4, min_storage_gb = $5, max_users = $6,
		 variables_schema = $7, default_config = $8, required_secrets = $9, default_features = $10,
		 chart_url = $11, chart_version = $12, playbook_path = $13, module_path = $14, compose_file_path = $15,
		 active = $16, requires_approval = $17, estimated_minutes = $18, updated_at = now()
		 WHERE id = $19`,
		tpl.DeploymentType, tpl.Version,
		tpl.MinCPUCores, tpl.MinMemoryGB, tpl.MinStorageGB, tpl.MaxUsers,
		tpl.VariablesSchema, tpl.DefaultConfig, tpl.RequiredSecrets, tpl.DefaultFeatures,
		tpl.ChartURL, tpl.ChartVersion, tpl.PlaybookPath, tpl.ModulePath, tpl.ComposeFilePath,
		tpl.Active, tpl.RequiresApproval, tpl.EstimatedMinutes, tpl.ID,
	)
	if err != nil {
		return fmt.Errorf("update template %s: %w", tpl.ID, err)
	}
	return nil
}

// SetActive flips the active flag. Inactive templates cannot be referenced
// by new instances.
func (s *TemplateService) SetActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.Exec(ctx,
		`UPDATE templates SET active = $1, updated_at = now() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return fmt.Errorf("set template %s active=%t: %w", id, active, err)
	}
	return nil
}

// InstanceCount returns the number of non-destroyed instances referencing
// the template. Templates with referencing instances must not be deleted.
func (s *TemplateService) InstanceCount(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM instances WHERE template_id = $1 AND state != $2`,
		id, model.StateDestroyed,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count instances for template %s: %w", id, err)
	}
	return n, nil
}
