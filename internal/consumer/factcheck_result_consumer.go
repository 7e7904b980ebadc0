// Package consumer holds the message handlers bound to the broker's consume
// loops. Each handler decides the fate of a single delivery; malformed or
// unresolvable payloads are discarded, never requeued.
package consumer

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/AungKyawPhyo1142/be-sentria/internal/broker"
	"github.com/AungKyawPhyo1142/be-sentria/internal/models"
	"github.com/AungKyawPhyo1142/be-sentria/internal/repository"
	"github.com/AungKyawPhyo1142/be-sentria/internal/service"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/logger"
)

// FactCheckResultConsumer applies worker verdicts to both stores. The whole
// handler is idempotent: the document update is a plain overwrite keyed by
// the report id, so a re-delivered result converges to the same state.
type FactCheckResultConsumer struct {
	validate *validator.Validate
	reports  repository.ReportRepository
	details  repository.ReportDetailRepository
	policy   service.VerdictPolicy
	score    service.ScoreService
	log      *logrus.Entry
}

// NewFactCheckResultConsumer creates a new fact-check result consumer
func NewFactCheckResultConsumer(
	reports repository.ReportRepository,
	details repository.ReportDetailRepository,
	policy service.VerdictPolicy,
	score service.ScoreService,
	log *logger.Logger,
) *FactCheckResultConsumer {
	return &FactCheckResultConsumer{
		validate: validator.New(),
		reports:  reports,
		details:  details,
		policy:   policy,
		score:    score,
		log:      log.WithComponent("factcheck_result_consumer"),
	}
}

// Handle processes one fact-check result delivery
func (c *FactCheckResultConsumer) Handle(ctx context.Context, body []byte) broker.Verdict {
	var result models.FactCheckResult
	if err := json.Unmarshal(body, &result); err != nil {
		c.log.WithError(err).Error("discarding malformed fact-check result")
		return broker.NackDiscard
	}
	if err := c.validate.Struct(result); err != nil {
		c.log.WithError(err).Error("discarding fact-check result with missing identifiers")
		return broker.NackDiscard
	}

	log := c.log.WithField("report_id", result.PostgresReportID)

	verdict := models.ExternalVerdict{
		Status:          result.Status,
		ConfidenceScore: &result.OverallConfidence,
		Narrative:       result.Narrative,
		Evidence:        result.Evidence,
		ServiceProvider: result.ServiceProvider,
		ProcessingError: result.ProcessingError,
		LastCheckedAt:   &result.CheckedAt,
	}

	matched, err := c.details.ApplyVerdict(ctx, result.PostgresReportID, verdict, result.OverallConfidence, result.CheckedAt)
	if err != nil {
		log.WithError(err).Error("failed to apply verdict to report detail")
		return broker.NackDiscard
	}
	if !matched {
		// The result references a report this system never stored. Retrying
		// cannot resolve it.
		log.Error("discarding fact-check result for unknown report")
		return broker.NackDiscard
	}

	status := c.policy.LifecycleStatus(result)
	err = c.reports.ApplyFactCheckResult(ctx, result.PostgresReportID,
		result.Status, result.OverallConfidence, result.CheckedAt, status, result.ProcessingError)
	if err != nil {
		log.WithError(err).Error("failed to apply verdict to report metadata")
		return broker.NackDiscard
	}

	// Recalculate blends community votes back in, persists the aggregate and
	// emits the room update.
	if _, err := c.score.Recalculate(ctx, result.PostgresReportID); err != nil {
		log.WithError(err).Error("failed to recalculate overall score")
		return broker.NackDiscard
	}

	log.WithField("status", status).Info("fact-check result applied")
	return broker.Ack
}
