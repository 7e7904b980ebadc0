package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AungKyawPhyo1142/be-sentria/internal/models"
)

func newMockRepo(t *testing.T) (ReportRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReportRepository(db), mock
}

func TestReportRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	report := &models.Report{
		ID:            "report-1",
		ReportType:    models.ReportTypeDisasterIncident,
		Name:          "Flooding in Hlaing",
		Country:       "Myanmar",
		City:          "Yangon",
		Status:        models.ReportStatusFactCheckPending,
		DBStatus:      models.ReportDBStatusPendingMongoCreation,
		GeneratedByID: 42,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectExec("INSERT INTO reports").
		WithArgs(report.ID, report.ReportType, report.Name, report.Country, report.City,
			report.Status, report.DBStatus, report.GeneratedByID, report.CreatedAt, report.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), report)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_GetByID(t *testing.T) {
	columns := []string{
		"id", "report_type", "name", "country", "city", "status", "db_status",
		"external_storage_id", "error_message", "factcheck_status",
		"factcheck_overall_percentage", "factcheck_last_updated_at",
		"generated_by_id", "created_at", "updated_at", "completed_at",
	}

	t.Run("existing row is scanned", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT id, report_type, name").
			WithArgs("report-1").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				"report-1", "DISASTER_INCIDENT", "Flooding in Hlaing", "Myanmar", "Yangon",
				"FACTCHECK_PENDING", "PUBLISHED_IN_MONGODB",
				"doc-1", nil, nil, nil, nil,
				42, now, now, now,
			))

		report, err := repo.GetByID(context.Background(), "report-1")
		require.NoError(t, err)
		require.NotNil(t, report)
		assert.Equal(t, models.ReportStatusFactCheckPending, report.Status)
		assert.Equal(t, models.ReportDBStatusPublishedInMongo, report.DBStatus)
		assert.Equal(t, "doc-1", report.ExternalStorageID.String)
		assert.Equal(t, int64(42), report.GeneratedByID)
	})

	t.Run("missing row is nil without error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("SELECT id, report_type, name").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(columns))

		report, err := repo.GetByID(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, report)
	})
}

func TestReportRepository_MarkDocumentStored(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE reports").
		WithArgs(models.ReportStatusFactCheckPending, models.ReportDBStatusPublishedInMongo,
			"doc-1", now, "report-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkDocumentStored(context.Background(), "report-1", "doc-1", now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_MarkFailed(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE reports").
		WithArgs(models.ReportStatusFailed, "document store down", "report-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFailed(context.Background(), "report-1", "document store down")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_UpdateDispatchStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE reports").
		WithArgs(models.ReportStatusPublishedFailed, "failed to publish fact-check job", "report-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateDispatchStatus(context.Background(), "report-1",
		models.ReportStatusPublishedFailed, "failed to publish fact-check job")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_ApplyFactCheckResult(t *testing.T) {
	repo, mock := newMockRepo(t)
	checkedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE reports").
		WithArgs("VERIFIED", 0.825, checkedAt, models.ReportStatusFactCheckComplete, "", "report-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyFactCheckResult(context.Background(), "report-1",
		"VERIFIED", 0.825, checkedAt, models.ReportStatusFactCheckComplete, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
