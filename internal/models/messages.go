package models

import "time"

// FactCheckJob is the immutable payload handed to the external fact-check
// worker. Report content is denormalized so the worker never reads the stores.
// Sent once per report, never mutated.
type FactCheckJob struct {
	ReportName        string      `json:"reportName"`
	PostgresReportID  string      `json:"postgresReportId"`
	MongoDBDocID      string      `json:"mongoDbDocId"`
	IncidentType      string      `json:"incidentType"`
	Description       string      `json:"description"`
	Severity          string      `json:"severity"`
	IncidentTimestamp string      `json:"incidentTimestamp"`
	Latitude          float64     `json:"latitude"`
	Longitude         float64     `json:"longitude"`
	City              string      `json:"city"`
	Country           string      `json:"country"`
	Media             []MediaItem `json:"media"`
	ReporterUserID    int64       `json:"reporterUserId"`
}

// FactCheckResult is the verdict produced by the external worker. Both store
// identifiers are required; a result that lacks either can never be applied
// and is discarded without retry.
type FactCheckResult struct {
	PostgresReportID  string     `json:"postgresReportId" validate:"required"`
	MongoDocID        string     `json:"mongoDocId" validate:"required"`
	OverallConfidence float64    `json:"overallConfidence"`
	CalculatedScore   float64    `json:"calculatedScore"`
	Status            string     `json:"status"`
	Narrative         string     `json:"narrative"`
	Evidence          []Evidence `json:"evidence,omitempty"`
	ServiceProvider   string     `json:"serviceProvider"`
	ProcessingError   string     `json:"processingError,omitempty"`
	CheckedAt         time.Time  `json:"checkedAt"`
}

// AlertData carries the display fields of an earthquake alert
type AlertData struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	URL       string  `json:"url"`
	Magnitude float64 `json:"magnitude"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Time      string  `json:"time"`
}

// NotificationJob routes one prepared alert to one websocket connection.
// Fire-and-forget: no result comes back.
type NotificationJob struct {
	SocketID  string    `json:"socketId" validate:"required"`
	EventName string    `json:"eventName"`
	Data      AlertData `json:"data"`
}

// FactCheckUpdate is emitted on a report's live-update room after a verdict
// has been applied to both stores.
type FactCheckUpdate struct {
	ReportID  string    `json:"reportId"`
	FactCheck FactCheck `json:"factCheck"`
}
