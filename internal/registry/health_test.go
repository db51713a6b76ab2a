package registry

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/deployhub/internal/model"
)

func TestHealthService_Insert(t *testing.T) {
	db := &mockDB{}
	svc := NewHealthService(db)
	ctx := context.Background()

	rec := &model.HealthRecord{
		ID:         "hr-1",
		InstanceID: "inst-1",
		CheckType:  "http",
		Status:     model.HealthHealthy,
		CheckedAt:  time.Now(),
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	err := svc.Insert(ctx, rec)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestHealthService_LatestByInstance_None(t *testing.T) {
	db := &mockDB{}
	svc := NewHealthService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errNoRowsRow())

	rec, err := svc.LatestByInstance(ctx, "inst-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	db.AssertExpectations(t)
}

func TestHealthService_LatestByInstance_Found(t *testing.T) {
	db := &mockDB{}
	svc := NewHealthService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "hr-2"
		*(dest[1].(*string)) = "inst-1"
		*(dest[2].(*string)) = "http"
		*(dest[4].(*string)) = model.HealthDegraded
		*(dest[10].(*time.Time)) = now
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	rec, err := svc.LatestByInstance(ctx, "inst-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.HealthDegraded, rec.Status)
	assert.Equal(t, now, rec.CheckedAt)
	db.AssertExpectations(t)
}

func TestHealthService_ListByInstance_ClampsLimit(t *testing.T) {
	db := &mockDB{}
	svc := NewHealthService(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return args[1] == 100
	})).Return(newEmptyMockRows(), nil)

	records, err := svc.ListByInstance(ctx, "inst-1", -5)
	require.NoError(t, err)
	assert.Empty(t, records)
	db.AssertExpectations(t)
}

func TestHealthService_PruneOlderThan(t *testing.T) {
	db := &mockDB{}
	svc := NewHealthService(db)
	ctx := context.Background()

	cutoff := time.Now().AddDate(0, 0, -30)
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return args[0] == cutoff
	})).Return(pgconn.NewCommandTag("DELETE 12"), nil)

	n, err := svc.PruneOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	db.AssertExpectations(t)
}
