package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AungKyawPhyo1142/be-sentria/internal/broker"
	"github.com/AungKyawPhyo1142/be-sentria/internal/models"
	"github.com/AungKyawPhyo1142/be-sentria/internal/service"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/logger"
)

func resultBody(t *testing.T, result models.FactCheckResult) []byte {
	t.Helper()
	body, err := json.Marshal(result)
	require.NoError(t, err)
	return body
}

func validResult() models.FactCheckResult {
	return models.FactCheckResult{
		PostgresReportID:  "pg-1",
		MongoDocID:        "doc-1",
		OverallConfidence: 0.825,
		CalculatedScore:   0.4,
		Status:            models.VerdictVerified,
		Narrative:         "corroborated by three sources",
		ServiceProvider:   "factcheck-worker",
		CheckedAt:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFactCheckResultConsumer_Handle(t *testing.T) {
	ctx := context.Background()
	log := logger.NewLogger("test")

	t.Run("malformed body is discarded", func(t *testing.T) {
		c := NewFactCheckResultConsumer(&mockReportRepo{}, &mockDetailRepo{}, service.VerdictPolicy{}, &mockScoreService{}, log)
		assert.Equal(t, broker.NackDiscard, c.Handle(ctx, []byte("not json")))
	})

	t.Run("missing identifiers are discarded before any store write", func(t *testing.T) {
		details := &mockDetailRepo{
			applyVerdictFunc: func(context.Context, string, models.ExternalVerdict, float64, time.Time) (bool, error) {
				t.Fatal("must not write with missing identifiers")
				return false, nil
			},
		}
		c := NewFactCheckResultConsumer(&mockReportRepo{}, details, service.VerdictPolicy{}, &mockScoreService{}, log)

		result := validResult()
		result.MongoDocID = ""
		assert.Equal(t, broker.NackDiscard, c.Handle(ctx, resultBody(t, result)))
	})

	t.Run("result for unknown report is discarded without touching the row", func(t *testing.T) {
		details := &mockDetailRepo{
			applyVerdictFunc: func(context.Context, string, models.ExternalVerdict, float64, time.Time) (bool, error) {
				return false, nil
			},
		}
		reports := &mockReportRepo{
			applyFactCheckResultFunc: func(context.Context, string, string, float64, time.Time, models.ReportStatus, string) error {
				t.Fatal("must not update the row for an unmatched result")
				return nil
			},
		}
		c := NewFactCheckResultConsumer(reports, details, service.VerdictPolicy{}, &mockScoreService{}, log)
		assert.Equal(t, broker.NackDiscard, c.Handle(ctx, resultBody(t, validResult())))
	})

	t.Run("happy path applies verdict to both stores and recalculates once", func(t *testing.T) {
		var appliedVerdict models.ExternalVerdict
		var rowStatus models.ReportStatus
		var recalcCalls int

		details := &mockDetailRepo{
			applyVerdictFunc: func(_ context.Context, id string, verdict models.ExternalVerdict, overall float64, _ time.Time) (bool, error) {
				assert.Equal(t, "pg-1", id)
				// The worker's confidence, not its calculated score, is written.
				assert.InDelta(t, 0.825, overall, 0.001)
				appliedVerdict = verdict
				return true, nil
			},
		}
		reports := &mockReportRepo{
			applyFactCheckResultFunc: func(_ context.Context, id, factCheckStatus string, overall float64, _ time.Time, status models.ReportStatus, errorMessage string) error {
				assert.Equal(t, "pg-1", id)
				assert.Equal(t, models.VerdictVerified, factCheckStatus)
				assert.InDelta(t, 0.825, overall, 0.001)
				assert.Empty(t, errorMessage)
				rowStatus = status
				return nil
			},
		}
		score := &mockScoreService{
			recalculateFunc: func(_ context.Context, id string) (float64, error) {
				assert.Equal(t, "pg-1", id)
				recalcCalls++
				return 0.825, nil
			},
		}

		c := NewFactCheckResultConsumer(reports, details, service.VerdictPolicy{}, score, log)
		assert.Equal(t, broker.Ack, c.Handle(ctx, resultBody(t, validResult())))

		assert.Equal(t, models.VerdictVerified, appliedVerdict.Status)
		require.NotNil(t, appliedVerdict.ConfidenceScore)
		assert.InDelta(t, 0.825, *appliedVerdict.ConfidenceScore, 0.001)
		assert.Equal(t, models.ReportStatusFactCheckComplete, rowStatus)
		assert.Equal(t, 1, recalcCalls)
	})

	t.Run("redelivery of the same result converges", func(t *testing.T) {
		verdicts := []models.ExternalVerdict{}
		details := &mockDetailRepo{
			applyVerdictFunc: func(_ context.Context, _ string, verdict models.ExternalVerdict, _ float64, _ time.Time) (bool, error) {
				verdicts = append(verdicts, verdict)
				return true, nil
			},
		}
		c := NewFactCheckResultConsumer(&mockReportRepo{}, details, service.VerdictPolicy{}, &mockScoreService{}, log)

		body := resultBody(t, validResult())
		assert.Equal(t, broker.Ack, c.Handle(ctx, body))
		assert.Equal(t, broker.Ack, c.Handle(ctx, body))

		require.Len(t, verdicts, 2)
		assert.Equal(t, verdicts[0].Status, verdicts[1].Status)
		assert.Equal(t, *verdicts[0].ConfidenceScore, *verdicts[1].ConfidenceScore)
	})

	t.Run("worker processing error marks the row FAILED", func(t *testing.T) {
		var rowStatus models.ReportStatus
		var rowError string
		reports := &mockReportRepo{
			applyFactCheckResultFunc: func(_ context.Context, _, _ string, _ float64, _ time.Time, status models.ReportStatus, errorMessage string) error {
				rowStatus = status
				rowError = errorMessage
				return nil
			},
		}
		c := NewFactCheckResultConsumer(reports, &mockDetailRepo{}, service.VerdictPolicy{}, &mockScoreService{}, log)

		result := validResult()
		result.ProcessingError = "upstream sources unavailable"
		assert.Equal(t, broker.Ack, c.Handle(ctx, resultBody(t, result)))
		assert.Equal(t, models.ReportStatusFailed, rowStatus)
		assert.Equal(t, "upstream sources unavailable", rowError)
	})

	t.Run("score recalculation failure discards the delivery", func(t *testing.T) {
		score := &mockScoreService{
			recalculateFunc: func(context.Context, string) (float64, error) {
				return 0, errors.New("store unavailable")
			},
		}
		c := NewFactCheckResultConsumer(&mockReportRepo{}, &mockDetailRepo{}, service.VerdictPolicy{}, score, log)
		assert.Equal(t, broker.NackDiscard, c.Handle(ctx, resultBody(t, validResult())))
	})
}
