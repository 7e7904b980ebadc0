package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AungKyawPhyo1142/be-sentria/internal/models"
	"github.com/AungKyawPhyo1142/be-sentria/internal/repository"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/logger"
)

var (
	ErrReportNotFound = errors.New("report not found")
	ErrNotReportOwner = errors.New("not the report owner")
)

// Publisher hands a payload to the broker and reports whether the broker
// durably accepted it. Implemented by the broker client.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload any) bool
}

// Geocoder resolves city/country for a coordinate pair
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (city, country string, err error)
}

// CreateReportInput is a validated disaster report submission
type CreateReportInput struct {
	ReportName        string
	Description       string
	IncidentType      models.IncidentType
	Severity          models.Severity
	IncidentTimestamp time.Time
	Longitude         float64
	Latitude          float64
	City              string
	Country           string
	Media             []models.MediaItem
}

// CreateReportOutput returns both store identifiers plus the final dispatch
// status, so the caller can tell "created and queued" from "created but
// dispatch failed" without polling.
type CreateReportOutput struct {
	PostgresReportID string              `json:"postgresReportId"`
	MongoDocID       string              `json:"mongoDbReportId"`
	Status           models.ReportStatus `json:"currentStatus"`
	Message          string              `json:"message"`
}

// ReportService orchestrates the dual-store write sequence for disaster
// reports. There is no cross-store transaction; the relational row's status
// carries the truth about how far each creation got.
type ReportService interface {
	Create(ctx context.Context, input CreateReportInput, requesterID int64) (*CreateReportOutput, error)
	Get(ctx context.Context, mongoDocID string) (*models.ReportDetail, error)
	List(ctx context.Context, cursor string, limit int) ([]models.ReportDetail, string, error)
	Update(ctx context.Context, mongoDocID string, input CreateReportInput, requesterID int64) error
	Delete(ctx context.Context, mongoDocID string, requesterID int64) error
}

type reportService struct {
	reports        repository.ReportRepository
	details        repository.ReportDetailRepository
	publisher      Publisher
	geocoder       Geocoder
	factCheckQueue string
	log            *logrus.Entry
}

// NewReportService creates a new report service. geocoder may be nil when
// reverse geocoding is not configured; city/country then stay as submitted.
func NewReportService(
	reports repository.ReportRepository,
	details repository.ReportDetailRepository,
	publisher Publisher,
	geocoder Geocoder,
	factCheckQueue string,
	log *logger.Logger,
) ReportService {
	return &reportService{
		reports:        reports,
		details:        details,
		publisher:      publisher,
		geocoder:       geocoder,
		factCheckQueue: factCheckQueue,
		log:            log.WithComponent("report_service"),
	}
}

func (s *reportService) Create(ctx context.Context, input CreateReportInput, requesterID int64) (*CreateReportOutput, error) {
	now := time.Now().UTC()

	if s.geocoder != nil && (input.City == "" || input.Country == "") {
		city, country, err := s.geocoder.ReverseGeocode(ctx, input.Latitude, input.Longitude)
		if err != nil {
			// Geocoding is a convenience, never a reason to reject a report.
			s.log.WithError(err).Warn("reverse geocoding failed, keeping submitted location fields")
		} else {
			if input.City == "" {
				input.City = city
			}
			if input.Country == "" {
				input.Country = country
			}
		}
	}

	// Step 1: relational metadata row in pending-document-write state. If this
	// fails nothing else has happened and there is nothing to compensate.
	report := &models.Report{
		ID:            uuid.New().String(),
		ReportType:    models.ReportTypeDisasterIncident,
		Name:          input.ReportName,
		Country:       input.Country,
		City:          input.City,
		Status:        models.ReportStatusFactCheckPending,
		DBStatus:      models.ReportDBStatusPendingMongoCreation,
		GeneratedByID: requesterID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report metadata: %w", err)
	}
	s.log.WithField("report_id", report.ID).Info("report metadata row created")

	// Step 2: full detail document with a zeroed fact-check block.
	detail := &models.ReportDetail{
		PostgresReportID:  report.ID,
		ReporterUserID:    requesterID,
		ReportName:        input.ReportName,
		Description:       input.Description,
		IncidentType:      input.IncidentType,
		Severity:          input.Severity,
		IncidentTimestamp: input.IncidentTimestamp,
		Location:          models.NewGeoPoint(input.Longitude, input.Latitude),
		City:              input.City,
		Country:           input.Country,
		Media:             input.Media,
		FactCheck:         models.NewPendingFactCheck(now),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	mongoDocID, err := s.details.Insert(ctx, detail)
	if err != nil {
		s.compensate(ctx, report.ID, fmt.Sprintf("report creation failed before dispatch: %v", err))
		return nil, fmt.Errorf("failed to create report detail: %w", err)
	}
	s.log.WithFields(logrus.Fields{"report_id": report.ID, "mongo_doc_id": mongoDocID}).Info("report detail document created")

	// Step 3: record the document reference on the row.
	if err := s.reports.MarkDocumentStored(ctx, report.ID, mongoDocID, now); err != nil {
		s.compensate(ctx, report.ID, fmt.Sprintf("failed to record document reference: %v", err))
		return nil, fmt.Errorf("failed to record document reference: %w", err)
	}

	// Step 4: hand the report to the fact-checker. The row's status reflects
	// the dispatch outcome either way; publish itself is fire-and-forget.
	job := models.FactCheckJob{
		ReportName:        input.ReportName,
		PostgresReportID:  report.ID,
		MongoDBDocID:      mongoDocID,
		IncidentType:      string(input.IncidentType),
		Description:       input.Description,
		Severity:          string(input.Severity),
		IncidentTimestamp: input.IncidentTimestamp.UTC().Format(time.RFC3339),
		Latitude:          input.Latitude,
		Longitude:         input.Longitude,
		City:              input.City,
		Country:           input.Country,
		Media:             input.Media,
		ReporterUserID:    requesterID,
	}

	finalStatus := models.ReportStatusFactCheckPending
	dispatchErr := ""
	if !s.publisher.Publish(ctx, s.factCheckQueue, job) {
		finalStatus = models.ReportStatusPublishedFailed
		dispatchErr = "failed to publish fact-check job"
		s.log.WithField("report_id", report.ID).Error("failed to publish fact-check job")
	} else {
		s.log.WithField("report_id", report.ID).Info("fact-check job published")
	}

	if err := s.reports.UpdateDispatchStatus(ctx, report.ID, finalStatus, dispatchErr); err != nil {
		return nil, fmt.Errorf("failed to record dispatch status: %w", err)
	}

	return &CreateReportOutput{
		PostgresReportID: report.ID,
		MongoDocID:       mongoDocID,
		Status:           finalStatus,
		Message:          fmt.Sprintf("disaster report %q created, dispatch status: %s", input.ReportName, finalStatus),
	}, nil
}

// compensate marks the row FAILED with the error recorded. Best-effort: the
// compensating write itself may fail, in which case the missing document
// reference still signals the failure.
func (s *reportService) compensate(ctx context.Context, reportID, message string) {
	if err := s.reports.MarkFailed(ctx, reportID, message); err != nil {
		s.log.WithField("report_id", reportID).WithError(err).Error("failed to mark report as failed")
	}
}

func (s *reportService) Get(ctx context.Context, mongoDocID string) (*models.ReportDetail, error) {
	detail, err := s.details.GetByID(ctx, mongoDocID)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, ErrReportNotFound
	}
	return detail, nil
}

func (s *reportService) List(ctx context.Context, cursor string, limit int) ([]models.ReportDetail, string, error) {
	return s.details.List(ctx, cursor, limit)
}

// resolveOwned loads the document and its relational row and enforces that
// the requester is the original reporter. Not-found and ownership failures
// are distinct errors so callers can map them to different status classes.
func (s *reportService) resolveOwned(ctx context.Context, mongoDocID string, requesterID int64) (*models.ReportDetail, *models.Report, error) {
	detail, err := s.details.GetByID(ctx, mongoDocID)
	if err != nil {
		return nil, nil, err
	}
	if detail == nil {
		return nil, nil, ErrReportNotFound
	}
	if detail.PostgresReportID == "" {
		return nil, nil, fmt.Errorf("report detail %s has no metadata reference", mongoDocID)
	}

	report, err := s.reports.GetByID(ctx, detail.PostgresReportID)
	if err != nil {
		return nil, nil, err
	}
	if report == nil {
		return nil, nil, ErrReportNotFound
	}
	if report.GeneratedByID != requesterID {
		return nil, nil, ErrNotReportOwner
	}
	return detail, report, nil
}

func (s *reportService) Update(ctx context.Context, mongoDocID string, input CreateReportInput, requesterID int64) error {
	_, report, err := s.resolveOwned(ctx, mongoDocID, requesterID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.reports.UpdateMetadata(ctx, report.ID, input.ReportName, input.Country, input.City); err != nil {
		return err
	}

	updated := &models.ReportDetail{
		ReportName:        input.ReportName,
		Description:       input.Description,
		IncidentType:      input.IncidentType,
		Severity:          input.Severity,
		IncidentTimestamp: input.IncidentTimestamp,
		Location:          models.NewGeoPoint(input.Longitude, input.Latitude),
		City:              input.City,
		Country:           input.Country,
		Media:             input.Media,
		UpdatedAt:         now,
	}
	matched, err := s.details.UpdateContent(ctx, mongoDocID, updated)
	if err != nil {
		return err
	}
	if !matched {
		return ErrReportNotFound
	}

	s.log.WithField("report_id", report.ID).Info("report updated")
	return nil
}

func (s *reportService) Delete(ctx context.Context, mongoDocID string, requesterID int64) error {
	_, report, err := s.resolveOwned(ctx, mongoDocID, requesterID)
	if err != nil {
		return err
	}

	deleted, err := s.details.Delete(ctx, mongoDocID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrReportNotFound
	}

	if err := s.reports.Delete(ctx, report.ID); err != nil {
		return fmt.Errorf("failed to delete report metadata %s: %w", report.ID, err)
	}

	s.log.WithField("report_id", report.ID).Info("report deleted")
	return nil
}
