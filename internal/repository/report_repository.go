package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AungKyawPhyo1142/be-sentria/internal/models"
)

// ReportRepository persists report metadata rows in the relational store.
// The row's status is the single source of truth for how far a report's
// fact-check dispatch got.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)

	// MarkDocumentStored records the document-store reference after a
	// successful detail write and advances dbStatus.
	MarkDocumentStored(ctx context.Context, id, externalStorageID string, completedAt time.Time) error

	// UpdateDispatchStatus reflects the outcome of publishing the fact-check
	// job; errorMessage is cleared on success.
	UpdateDispatchStatus(ctx context.Context, id string, status models.ReportStatus, errorMessage string) error

	// MarkFailed is the compensating write used when the document store (or
	// anything after row creation) fails.
	MarkFailed(ctx context.Context, id, errorMessage string) error

	// ApplyFactCheckResult updates the denormalized fact-check fields and the
	// lifecycle status from a consumed verdict.
	ApplyFactCheckResult(ctx context.Context, id string, factCheckStatus string, overallPercentage float64, checkedAt time.Time, status models.ReportStatus, errorMessage string) error

	// SetOverallPercentage stores a recomputed aggregate score.
	SetOverallPercentage(ctx context.Context, id string, overallPercentage float64, calculatedAt time.Time) error

	UpdateMetadata(ctx context.Context, id, name, country, city string) error
	Delete(ctx context.Context, id string) error
}

type reportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (id, report_type, name, country, city, status, db_status, generated_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		report.ID, report.ReportType, report.Name, report.Country, report.City,
		report.Status, report.DBStatus, report.GeneratedByID, report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report row: %w", err)
	}
	return nil
}

func (r *reportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	report := &models.Report{}

	query := `
		SELECT id, report_type, name, country, city, status, db_status,
		       external_storage_id, error_message, factcheck_status,
		       factcheck_overall_percentage, factcheck_last_updated_at,
		       generated_by_id, created_at, updated_at, completed_at
		FROM reports
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&report.ID, &report.ReportType, &report.Name, &report.Country, &report.City,
		&report.Status, &report.DBStatus,
		&report.ExternalStorageID, &report.ErrorMessage, &report.FactCheckStatus,
		&report.FactCheckOverallPercentage, &report.FactCheckLastUpdatedAt,
		&report.GeneratedByID, &report.CreatedAt, &report.UpdatedAt, &report.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}

	return report, nil
}

func (r *reportRepository) MarkDocumentStored(ctx context.Context, id, externalStorageID string, completedAt time.Time) error {
	query := `
		UPDATE reports
		SET status = $1, db_status = $2, external_storage_id = $3, completed_at = $4, updated_at = $4
		WHERE id = $5
	`

	_, err := r.db.ExecContext(ctx, query,
		models.ReportStatusFactCheckPending, models.ReportDBStatusPublishedInMongo,
		externalStorageID, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to record document reference for report %s: %w", id, err)
	}
	return nil
}

func (r *reportRepository) UpdateDispatchStatus(ctx context.Context, id string, status models.ReportStatus, errorMessage string) error {
	query := `
		UPDATE reports
		SET status = $1, error_message = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $3
	`

	_, err := r.db.ExecContext(ctx, query, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update dispatch status for report %s: %w", id, err)
	}
	return nil
}

func (r *reportRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE reports
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`

	_, err := r.db.ExecContext(ctx, query, models.ReportStatusFailed, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark report %s as failed: %w", id, err)
	}
	return nil
}

func (r *reportRepository) ApplyFactCheckResult(ctx context.Context, id string, factCheckStatus string, overallPercentage float64, checkedAt time.Time, status models.ReportStatus, errorMessage string) error {
	query := `
		UPDATE reports
		SET factcheck_status = $1, factcheck_overall_percentage = $2,
		    factcheck_last_updated_at = $3, status = $4,
		    error_message = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $6
	`

	_, err := r.db.ExecContext(ctx, query, factCheckStatus, overallPercentage, checkedAt, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to apply fact-check result to report %s: %w", id, err)
	}
	return nil
}

func (r *reportRepository) SetOverallPercentage(ctx context.Context, id string, overallPercentage float64, calculatedAt time.Time) error {
	query := `
		UPDATE reports
		SET factcheck_overall_percentage = $1, factcheck_last_updated_at = $2, updated_at = NOW()
		WHERE id = $3
	`

	_, err := r.db.ExecContext(ctx, query, overallPercentage, calculatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to store overall score for report %s: %w", id, err)
	}
	return nil
}

func (r *reportRepository) UpdateMetadata(ctx context.Context, id, name, country, city string) error {
	query := `
		UPDATE reports
		SET name = $1, country = $2, city = $3, updated_at = NOW()
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, name, country, city, id)
	if err != nil {
		return fmt.Errorf("failed to update report %s metadata: %w", id, err)
	}
	return nil
}

func (r *reportRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM reports WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	return nil
}
