package registry

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the registry services use.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Services bundles all registry services over one database pool.
type Services struct {
	Template  *TemplateService
	Instance  *InstanceService
	Execution *ExecutionService
	Health    *HealthService
	Stats     *StatsService
}

func NewServices(db DB) *Services {
	return &Services{
		Template:  NewTemplateService(db),
		Instance:  NewInstanceService(db),
		Execution: NewExecutionService(db),
		Health:    NewHealthService(db),
		Stats:     NewStatsService(db),
	}
}
