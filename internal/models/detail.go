package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VerdictStatus values reported by the external fact-check worker
const (
	VerdictPendingVerification = "PENDING_VERIFICATION"
	VerdictVerified            = "VERIFIED"
	VerdictRejected            = "REJECTED"
)

// GeoPoint is a GeoJSON point, coordinates ordered [longitude, latitude]
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from a lon/lat pair
func NewGeoPoint(lon, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

// MediaItem is an attached image or video
type MediaItem struct {
	Type    string `bson:"type" json:"type"` // IMAGE or VIDEO
	URL     string `bson:"url" json:"url"`
	Caption string `bson:"caption,omitempty" json:"caption,omitempty"`
}

// CommunityScore counts community votes on a report's credibility
type CommunityScore struct {
	Upvotes   int `bson:"upvotes" json:"upvotes"`
	Downvotes int `bson:"downvotes" json:"downvotes"`
}

// ExternalVerdict is the fact-check worker's latest verdict for a report.
// Every field is overwritten wholesale when a result is applied, which is what
// makes re-delivery of the same result harmless.
type ExternalVerdict struct {
	Status          string     `bson:"status" json:"status"`
	ConfidenceScore *float64   `bson:"confidenceScore" json:"confidenceScore"`
	Narrative       string     `bson:"narrative,omitempty" json:"narrative,omitempty"`
	Evidence        []Evidence `bson:"evidence,omitempty" json:"evidence,omitempty"`
	ServiceProvider string     `bson:"serviceProvider,omitempty" json:"serviceProvider,omitempty"`
	ProcessingError string     `bson:"processingError,omitempty" json:"processingError,omitempty"`
	LastCheckedAt   *time.Time `bson:"lastCheckedAt" json:"lastCheckedAt"`
}

// Evidence is one source consulted by the fact-check worker
type Evidence struct {
	Source     string     `bson:"source" json:"source"`
	URL        string     `bson:"url,omitempty" json:"url,omitempty"`
	Summary    string     `bson:"summary" json:"summary"`
	Confidence float64    `bson:"confidence" json:"confidence"`
	Timestamp  *time.Time `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
}

// FactCheck aggregates community votes and the external verdict. Only this
// sub-document is mutated after the report detail is created.
type FactCheck struct {
	CommunityScore    CommunityScore  `bson:"communityScore" json:"communityScore"`
	ExternalVerdict   ExternalVerdict `bson:"externalVerdict" json:"externalVerdict"`
	OverallPercentage float64         `bson:"overallPercentage" json:"overallPercentage"`
	LastCalculatedAt  time.Time       `bson:"lastCalculatedAt" json:"lastCalculatedAt"`
}

// NewPendingFactCheck returns the zeroed fact-check block a fresh report starts with
func NewPendingFactCheck(now time.Time) FactCheck {
	return FactCheck{
		CommunityScore: CommunityScore{},
		ExternalVerdict: ExternalVerdict{
			Status: VerdictPendingVerification,
		},
		OverallPercentage: 0,
		LastCalculatedAt:  now,
	}
}

// ReportDetail is the full report body stored in the document store.
// PostgresReportID always resolves to an existing relational Report row.
type ReportDetail struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostgresReportID  string             `bson:"postgresReportId" json:"postgresReportId"`
	ReporterUserID    int64              `bson:"reporterUserId" json:"reporterUserId"`
	ReportName        string             `bson:"reportName" json:"reportName"`
	Description       string             `bson:"description" json:"description"`
	IncidentType      IncidentType       `bson:"incidentType" json:"incidentType"`
	Severity          Severity           `bson:"severity" json:"severity"`
	IncidentTimestamp time.Time          `bson:"incidentTimestamp" json:"incidentTimestamp"`
	Location          GeoPoint           `bson:"location" json:"location"`
	City              string             `bson:"city" json:"city"`
	Country           string             `bson:"country" json:"country"`
	Media             []MediaItem        `bson:"media" json:"media"`
	FactCheck         FactCheck          `bson:"factCheck" json:"factCheck"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}
