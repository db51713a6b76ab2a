package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/deployhub/internal/model"
)

func TestNewTemplateService(t *testing.T) {
	db := &mockDB{}
	svc := NewTemplateService(db)

	require.NotNil(t, svc)
	assert.Equal(t, db, svc.db)
}

// ---------- Create ----------

func TestTemplateService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewTemplateService(db)
	ctx := context.Background()

	now := time.Now()
	tpl := &model.Template{
		ID:             "tpl-1",
		Name:           "k8s-standard",
		BackendKind:    model.BackendKubernetes,
		DeploymentType: model.DeploymentShared,
		Version:        "1.0.0",
		MinCPUCores:    2,
		MinMemoryGB:    4,
		MinStorageGB:   20,
		DefaultConfig:  json.RawMessage(`{"replicas":2}`),
		ChartURL:       "oci://charts.example.com/app",
		ChartVersion:   "1.0.0",
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	err := svc.Create(ctx, tpl)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestTemplateService_Create_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewTemplateService(db)
	ctx := context.Background()

	tpl := &model.Template{ID: "tpl-1", Name: "k8s-standard"}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, errors.New("unique violation"))

	err := svc.Create(ctx, tpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert template")
	db.AssertExpectations(t)
}

// ---------- GetByID ----------

func TestTemplateService_GetByID_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewTemplateService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "tpl-1"
		*(dest[1].(*string)) = "k8s-standard"
		*(dest[2].(*string)) = model.BackendKubernetes
		*(dest[3].(*string)) = model.DeploymentShared
		*(dest[4].(*string)) = "1.0.0"
		*(dest[5].(*float64)) = 2
		*(dest[6].(*int)) = 4
		*(dest[7].(*int)) = 20
		*(dest[8].(*int)) = 100
		*(dest[18].(*bool)) = true
		*(dest[21].(*time.Time)) = now
		*(dest[22].(*time.Time)) = now
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	tpl, err := svc.GetByID(ctx, "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, "k8s-standard", tpl.Name)
	assert.Equal(t, model.BackendKubernetes, tpl.BackendKind)
	assert.True(t, tpl.Active)
	assert.Equal(t, now, tpl.CreatedAt)
	db.AssertExpectations(t)
}

func TestTemplateService_GetByID_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewTemplateService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errNoRowsRow())

	tpl, err := svc.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, tpl)
	db.AssertExpectations(t)
}

// ---------- List ----------

func TestTemplateService_List_Pagination(t *testing.T) {
	db := &mockDB{}
	svc := NewTemplateService(db)
	ctx := context.Background()

	scan := func(id string) func(dest ...any) error {
		return func(dest ...any) error {
			*(dest[0].(*string)) = id
			*(dest[1].(*string)) = "tpl-" + id
			return nil
		}
	}
	// Three rows returned for limit 2 means hasMore.
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(scan("a"), scan("b"), scan("c")), nil)

	templates, hasMore, err := svc.List(ctx, true, 2, "")
	require.NoError(t, err)
	assert.Len(t, templates, 2)
	assert.True(t, hasMore)
	db.AssertExpectations(t)
}

func TestTemplateService_List_Empty(t *testing.T) {
	db := &mockDB{}
	svc := NewTemplateService(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(newEmptyMockRows(), nil)

	templates, hasMore, err := svc.List(ctx, false, 50, "")
	require.NoError(t, err)
	assert.Empty(t, templates)
	assert.False(t, hasMore)
	db.AssertExpectations(t)
}

// ---------- SetActive ----------

func TestTemplateService_SetActive(t *testing.T) {
	db := &mockDB{}
	svc := NewTemplateService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	err := svc.SetActive(ctx, "tpl-1", false)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

// ---------- InstanceCount ----------

func TestTemplateService_InstanceCount(t *testing.T) {
	db := &mockDB{}
	svc := NewTemplateService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*int)) = 3
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	n, err := svc.InstanceCount(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	db.AssertExpectations(t)
}
