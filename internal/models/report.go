package models

import (
	"database/sql"
	"time"
)

// ReportStatus is the lifecycle status of a report's metadata row. The row is
// the authoritative record of how far fact-check dispatch got.
type ReportStatus string

const (
	ReportStatusFactCheckPending  ReportStatus = "FACTCHECK_PENDING"
	ReportStatusPublishedFailed   ReportStatus = "PUBLISHED_FAILED"
	ReportStatusFactCheckComplete ReportStatus = "FACTCHECK_COMPLETE"
	ReportStatusFailed            ReportStatus = "FAILED"
)

// ReportDBStatus marks document-store write progress for a report
type ReportDBStatus string

const (
	ReportDBStatusPendingMongoCreation ReportDBStatus = "PENDING_FOR_MONGODB_CREATION"
	ReportDBStatusPublishedInMongo     ReportDBStatus = "PUBLISHED_IN_MONGODB"
)

// ReportType distinguishes report kinds in the shared reports table
type ReportType string

const (
	ReportTypeDisasterIncident ReportType = "DISASTER_INCIDENT"
)

// IncidentType classifies a disaster incident
type IncidentType string

const (
	IncidentEarthquake IncidentType = "EARTHQUAKE"
	IncidentFlood      IncidentType = "FLOOD"
	IncidentFire       IncidentType = "FIRE"
	IncidentStorm      IncidentType = "STORM"
	IncidentOther      IncidentType = "OTHER"
)

// Severity grades an incident
type Severity string

const (
	SeverityUnknown  Severity = "UNKNOWN"
	SeverityMinor    Severity = "MINOR"
	SeverityModerate Severity = "MODERATE"
	SeveritySevere   Severity = "SEVERE"
)

// Report is the relational metadata row for a disaster report. It is created
// and mutated by the report service, and by the fact-check result consumer
// when a verdict arrives. ExternalStorageID references the document-store
// record once that write succeeded; a row without it and with status FAILED is
// an orphan that was marked, never silently lost.
type Report struct {
	ID                         string
	ReportType                 ReportType
	Name                       string
	Country                    string
	City                       string
	Status                     ReportStatus
	DBStatus                   ReportDBStatus
	ExternalStorageID          sql.NullString
	ErrorMessage               sql.NullString
	FactCheckStatus            sql.NullString
	FactCheckOverallPercentage sql.NullFloat64
	FactCheckLastUpdatedAt     sql.NullTime
	GeneratedByID              int64
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
	CompletedAt                sql.NullTime
}
