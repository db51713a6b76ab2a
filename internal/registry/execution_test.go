package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/deployhub/internal/model"
)

func TestExecutionService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewExecutionService(db)
	ctx := context.Background()

	now := time.Now()
	exec := &model.Execution{
		ID:          "exec-1",
		InstanceID:  "inst-1",
		Operation:   model.OpProvision,
		State:       model.ExecutionRunning,
		StartedAt:   now,
		Actor:       "ops",
		TriggerType: model.TriggerManual,
		CreatedAt:   now,
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	err := svc.Create(ctx, exec)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestExecutionService_Finish(t *testing.T) {
	db := &mockDB{}
	svc := NewExecutionService(db)
	ctx := context.Background()

	errMsg := "chart not found"
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return args[0] == model.ExecutionFailed && args[1] == model.ResultFailure
	})).Return(pgconn.CommandTag{}, nil)

	err := svc.Finish(ctx, "exec-1", FinishParams{
		State:        model.ExecutionFailed,
		Result:       model.ResultFailure,
		ErrorMessage: &errMsg,
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestExecutionService_Finish_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewExecutionService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := svc.Finish(ctx, "exec-1", FinishParams{State: model.ExecutionSucceeded, Result: model.ResultSuccess})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finish execution exec-1")
	db.AssertExpectations(t)
}

func TestExecutionService_RunningByInstance_None(t *testing.T) {
	db := &mockDB{}
	svc := NewExecutionService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errNoRowsRow())

	exec, err := svc.RunningByInstance(ctx, "inst-1")
	require.NoError(t, err)
	assert.Nil(t, exec)
	db.AssertExpectations(t)
}

func TestExecutionService_RunningByInstance_Found(t *testing.T) {
	db := &mockDB{}
	svc := NewExecutionService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "exec-1"
		*(dest[1].(*string)) = "inst-1"
		*(dest[2].(*string)) = model.OpUpgrade
		*(dest[3].(*string)) = model.ExecutionRunning
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	exec, err := svc.RunningByInstance(ctx, "inst-1")
	require.NoError(t, err)
	require.NotNil(t, exec)
	assert.Equal(t, model.ExecutionRunning, exec.State)
	assert.Equal(t, model.OpUpgrade, exec.Operation)
	db.AssertExpectations(t)
}

func TestExecutionService_LastSuccessfulAtVersion(t *testing.T) {
	db := &mockDB{}
	svc := NewExecutionService(db)
	ctx := context.Background()

	toVersion := "1.0.0"
	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "exec-0"
		*(dest[1].(*string)) = "inst-1"
		*(dest[2].(*string)) = model.OpProvision
		*(dest[3].(*string)) = model.ExecutionSucceeded
		*(dest[12].(**string)) = &toVersion
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return args[0] == "inst-1" && args[1] == "1.0.0"
	})).Return(row)

	exec, err := svc.LastSuccessfulAtVersion(ctx, "inst-1", "1.0.0")
	require.NoError(t, err)
	require.NotNil(t, exec)
	require.NotNil(t, exec.ToVersion)
	assert.Equal(t, "1.0.0", *exec.ToVersion)
	db.AssertExpectations(t)
}

func TestExecutionService_ListByInstance_Pagination(t *testing.T) {
	db := &mockDB{}
	svc := NewExecutionService(db)
	ctx := context.Background()

	scan := func(id string) func(dest ...any) error {
		return func(dest ...any) error {
			*(dest[0].(*string)) = id
			*(dest[1].(*string)) = "inst-1"
			return nil
		}
	}
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(scan("e3"), scan("e2"), scan("e1")), nil)

	executions, hasMore, err := svc.ListByInstance(ctx, "inst-1", 2, "")
	require.NoError(t, err)
	assert.Len(t, executions, 2)
	assert.True(t, hasMore)
	db.AssertExpectations(t)
}
