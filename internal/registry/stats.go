package registry

import (
	"context"
	"fmt"
)

// Stats holds aggregate counts across the deployment registry.
type Stats struct {
	Templates       int             `json:"templates"`
	TemplatesActive int             `json:"templates_active"`
	Instances       int             `json:"instances"`
	ByState         []StateCount    `json:"instances_by_state"`
	ByHealth        []StateCount    `json:"instances_by_health"`
	ByTemplate      []TemplateCount `json:"instances_by_template"`

	TotalCPUCores  float64 `json:"total_cpu_cores"`
	TotalMemoryGB  int     `json:"total_memory_gb"`
	TotalStorageGB int     `json:"total_storage_gb"`

	ExecutionsRunning int `json:"executions_running"`
	ExecutionsFailed  int `json:"executions_failed_24h"`
}

// StateCount holds an instance count per state or health status.
type StateCount struct {
	State string `json:"state"`
	Count int    `json:"count"`
}

// TemplateCount holds a non-destroyed instance count per template.
type TemplateCount struct {
	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_name"`
	Count        int    `json:"count"`
}

// StatsService queries aggregate stats from the registry. When tenantID is
// non-empty all instance aggregates are scoped to that tenant.
type StatsService struct {
	db DB
}

func NewStatsService(db DB) *StatsService {
	return &StatsService{db: db}
}

func (s *StatsService) Overview(ctx context.Context, tenantID string) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE active) FROM templates`,
	).Scan(&stats.Templates, &stats.TemplatesActive)
	if err != nil {
		return nil, fmt.Errorf("count templates: %w", err)
	}

	instFilter := `WHERE state != 'destroyed'`
	args := []any{}
	if tenantID != "" {
		instFilter += ` AND tenant_id = $1`
		args = append(args, tenantID)
	}

	err = s.db.QueryRow(ctx,
		`SELECT count(*), COALESCE(sum(cpu_cores), 0), COALESCE(sum(memory_gb), 0), COALESCE(sum(storage_gb), 0)
		 FROM instances `+instFilter, args...,
	).Scan(&stats.Instances, &stats.TotalCPUCores, &stats.TotalMemoryGB, &stats.TotalStorageGB)
	if err != nil {
		return nil, fmt.Errorf("aggregate instances: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT state, count(*) FROM instances `+instFilter+` GROUP BY state ORDER BY state`, args...)
	if err != nil {
		return nil, fmt.Errorf("count instances by state: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sc StateCount
		if err := rows.Scan(&sc.State, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		stats.ByState = append(stats.ByState, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state counts: %w", err)
	}

	rows, err = s.db.Query(ctx,
		`SELECT health_status, count(*) FROM instances `+instFilter+` GROUP BY health_status ORDER BY health_status`, args...)
	if err != nil {
		return nil, fmt.Errorf("count instances by health: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sc StateCount
		if err := rows.Scan(&sc.State, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan health count: %w", err)
		}
		stats.ByHealth = append(stats.ByHealth, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health counts: %w", err)
	}

	tplQuery := `SELECT t.id, t.name, count(i.id)
		 FROM templates t JOIN instances i ON i.template_id = t.id
		 ` + instFilter + ` GROUP BY t.id, t.name ORDER BY count(i.id) DESC`
	rows, err = s.db.Query(ctx, tplQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("count instances by template: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc TemplateCount
		if err := rows.Scan(&tc.TemplateID, &tc.TemplateName, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan template count: %w", err)
		}
		stats.ByTemplate = append(stats.ByTemplate, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template counts: %w", err)
	}

	execFilter := ""
	if tenantID != "" {
		execFilter = ` AND instance_id IN (SELECT id FROM instances WHERE tenant_id = $1)`
	}
	err = s.db.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE state = 'running'),
		        count(*) FILTER (WHERE state = 'failed' AND created_at > now() - interval '24 hours')
		 FROM executions WHERE true`+execFilter, args...,
	).Scan(&stats.ExecutionsRunning, &stats.ExecutionsFailed)
	if err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}

	return stats, nil
}
