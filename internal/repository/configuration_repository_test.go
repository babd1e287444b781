package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campusconnect-api/internal/models"
)

func newConfigurationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestConfigurationRepositoryGet(t *testing.T) {
	db, mock, cleanup := newConfigurationRepoMock(t)
	defer cleanup()

	repo := NewConfigurationRepository(db)
	rows := sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"}).
		AddRow("clearance_template.physics", "Library:faculty,HOD:faculty", "STEP_TEMPLATE", nil, "admin", time.Now())
	mock.ExpectQuery("SELECT key, value").
		WithArgs("clearance_template.physics").
		WillReturnRows(rows)

	cfg, err := repo.Get(context.Background(), "clearance_template.physics")
	require.NoError(t, err)
	assert.Equal(t, models.ConfigurationTypeStepTemplate, cfg.Type)
	assert.Equal(t, "Library:faculty,HOD:faculty", cfg.Value)

	mock.ExpectQuery("SELECT key, value").
		WithArgs("clearance_template.history").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "clearance_template.history")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepositoryListByPrefix(t *testing.T) {
	db, mock, cleanup := newConfigurationRepoMock(t)
	defer cleanup()

	repo := NewConfigurationRepository(db)
	rows := sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"}).
		AddRow("clearance_template.physics", "Library:faculty", "STEP_TEMPLATE", nil, nil, time.Now())
	mock.ExpectQuery("SELECT key, value").
		WithArgs(`clearance\_template.%`).
		WillReturnRows(rows)

	result, err := repo.ListByPrefix(context.Background(), models.ClearanceTemplateKeyPrefix)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "clearance_template.physics", result[0].Key)
}

func TestConfigurationRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newConfigurationRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs("clearance_template.physics", "Library:faculty", "STEP_TEMPLATE", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cfg := &models.Configuration{
		Key:       "clearance_template.physics",
		Value:     "Library:faculty",
		Type:      models.ConfigurationTypeStepTemplate,
		UpdatedBy: strPtr("admin"),
	}
	require.NoError(t, repo.Upsert(context.Background(), cfg))
	assert.False(t, cfg.UpdatedAt.IsZero())
}

func strPtr(value string) *string {
	return &value
}
