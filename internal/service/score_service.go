package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AungKyawPhyo1142/be-sentria/internal/constants"
	"github.com/AungKyawPhyo1142/be-sentria/internal/models"
	"github.com/AungKyawPhyo1142/be-sentria/internal/repository"
	"github.com/AungKyawPhyo1142/be-sentria/internal/ws"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/logger"
)

const (
	externalWeight  = 0.7
	communityWeight = 0.3
)

// ScoreService recomputes a report's overall credibility percentage from the
// external verdict and community votes, writes it to both stores and pushes
// the refreshed fact-check block to the report's live-update room. It is the
// only place that emits the room update, so every applied verdict produces
// exactly one.
type ScoreService interface {
	Recalculate(ctx context.Context, postgresReportID string) (float64, error)
}

type scoreService struct {
	reports repository.ReportRepository
	details repository.ReportDetailRepository
	emitter ws.Emitter
	log     *logrus.Entry
}

// NewScoreService creates a new score service
func NewScoreService(
	reports repository.ReportRepository,
	details repository.ReportDetailRepository,
	emitter ws.Emitter,
	log *logger.Logger,
) ScoreService {
	return &scoreService{
		reports: reports,
		details: details,
		emitter: emitter,
		log:     log.WithComponent("score_service"),
	}
}

func (s *scoreService) Recalculate(ctx context.Context, postgresReportID string) (float64, error) {
	detail, err := s.details.GetByReportID(ctx, postgresReportID)
	if err != nil {
		return 0, err
	}
	if detail == nil {
		return 0, ErrReportNotFound
	}

	now := time.Now().UTC()
	overall := computeOverall(detail.FactCheck)

	matched, err := s.details.SetOverallScore(ctx, postgresReportID, overall, now)
	if err != nil {
		return 0, err
	}
	if !matched {
		return 0, ErrReportNotFound
	}
	if err := s.reports.SetOverallPercentage(ctx, postgresReportID, overall, now); err != nil {
		return 0, fmt.Errorf("failed to store overall score: %w", err)
	}

	detail.FactCheck.OverallPercentage = overall
	detail.FactCheck.LastCalculatedAt = now
	s.emitter.EmitToRoom(postgresReportID, constants.FactCheckUpdateEventName, models.FactCheckUpdate{
		ReportID:  postgresReportID,
		FactCheck: detail.FactCheck,
	})

	s.log.WithFields(logrus.Fields{"report_id": postgresReportID, "overall": overall}).Info("overall score recalculated")
	return overall, nil
}

// computeOverall blends the worker's confidence with the community vote
// ratio, both on the 0-1 scale. Without votes the external confidence stands
// alone; without a verdict the score is zero.
func computeOverall(fc models.FactCheck) float64 {
	external := 0.0
	if fc.ExternalVerdict.ConfidenceScore != nil {
		external = *fc.ExternalVerdict.ConfidenceScore
	}

	votes := fc.CommunityScore.Upvotes + fc.CommunityScore.Downvotes
	if votes == 0 {
		return external
	}

	ratio := float64(fc.CommunityScore.Upvotes) / float64(votes)
	return externalWeight*external + communityWeight*ratio
}
