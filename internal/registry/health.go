package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/deployhub/internal/model"
)

type HealthService struct {
	db DB
}

func NewHealthService(db DB) *HealthService {
	return &HealthService{db: db}
}

const healthColumns = `id, instance_id, check_type, endpoint, status,
	response_time_ms, metrics, details, error_message, alerts, checked_at`

func (s *HealthService) Insert(ctx context.Context, rec *model.HealthRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO health_records (id, instance_id, check_type, endpoint, status,
		 response_time_ms, metrics, details, error_message, alerts, checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.InstanceID, rec.CheckType, rec.Endpoint, rec.Status,
		rec.ResponseTimeMS, rec.Metrics, rec.Details, rec.ErrorMessage, rec.Alerts, rec.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert health record: %w", err)
	}
	return nil
}

// LatestByInstance returns the most recent health record for the instance,
// or nil when none has been recorded yet.
func (s *HealthService) LatestByInstance(ctx context.Context, instanceID string) (*model.HealthRecord, error) {
	var r model.HealthRecord
	err := s.db.QueryRow(ctx,
		`SELECT `+healthColumns+` FROM health_records
		 WHERE instance_id = $1 ORDER BY checked_at DESC LIMIT 1`, instanceID,
	).Scan(&r.ID, &r.InstanceID, &r.CheckType, &r.Endpoint, &r.Status,
		&r.ResponseTimeMS, &r.Metrics, &r.Details, &r.ErrorMessage, &r.Alerts, &r.CheckedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest health record for instance %s: %w", instanceID, err)
	}
	return &r, nil
}

// ListByInstance returns recent health records for an instance, newest first.
func (s *HealthService) ListByInstance(ctx context.Context, instanceID string, limit int) ([]model.HealthRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+healthColumns+` FROM health_records
		 WHERE instance_id = $1 ORDER BY checked_at DESC LIMIT $2`, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list health records for instance %s: %w", instanceID, err)
	}
	defer rows.Close()

	var records []model.HealthRecord
	for rows.Next() {
		var r model.HealthRecord
		if err := rows.Scan(&r.ID, &r.InstanceID, &r.CheckType, &r.Endpoint, &r.Status,
			&r.ResponseTimeMS, &r.Metrics, &r.Details, &r.ErrorMessage, &r.Alerts, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan health record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health records: %w", err)
	}
	return records, nil
}

// PruneOlderThan deletes health records older than the cutoff and returns
// the number removed.
func (s *HealthService) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM health_records WHERE checked_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune health records: %w", err)
	}
	return tag.RowsAffected(), nil
}
