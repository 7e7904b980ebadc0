package consumer

import (
	"context"
	"time"

	"github.com/AungKyawPhyo1142/be-sentria/internal/models"
)

// mockReportRepo implements repository.ReportRepository for testing
type mockReportRepo struct {
	applyFactCheckResultFunc func(ctx context.Context, id, factCheckStatus string, overallPercentage float64, checkedAt time.Time, status models.ReportStatus, errorMessage string) error
}

func (m *mockReportRepo) Create(context.Context, *models.Report) error { return nil }
func (m *mockReportRepo) GetByID(context.Context, string) (*models.Report, error) {
	return nil, nil
}
func (m *mockReportRepo) MarkDocumentStored(context.Context, string, string, time.Time) error {
	return nil
}
func (m *mockReportRepo) UpdateDispatchStatus(context.Context, string, models.ReportStatus, string) error {
	return nil
}
func (m *mockReportRepo) MarkFailed(context.Context, string, string) error { return nil }
func (m *mockReportRepo) ApplyFactCheckResult(ctx context.Context, id, factCheckStatus string, overallPercentage float64, checkedAt time.Time, status models.ReportStatus, errorMessage string) error {
	if m.applyFactCheckResultFunc != nil {
		return m.applyFactCheckResultFunc(ctx, id, factCheckStatus, overallPercentage, checkedAt, status, errorMessage)
	}
	return nil
}
func (m *mockReportRepo) SetOverallPercentage(context.Context, string, float64, time.Time) error {
	return nil
}
func (m *mockReportRepo) UpdateMetadata(context.Context, string, string, string, string) error {
	return nil
}
func (m *mockReportRepo) Delete(context.Context, string) error { return nil }

// mockDetailRepo implements repository.ReportDetailRepository for testing
type mockDetailRepo struct {
	applyVerdictFunc func(ctx context.Context, postgresReportID string, verdict models.ExternalVerdict, overallPercentage float64, calculatedAt time.Time) (bool, error)
}

func (m *mockDetailRepo) Insert(context.Context, *models.ReportDetail) (string, error) {
	return "", nil
}
func (m *mockDetailRepo) GetByID(context.Context, string) (*models.ReportDetail, error) {
	return nil, nil
}
func (m *mockDetailRepo) GetByReportID(context.Context, string) (*models.ReportDetail, error) {
	return nil, nil
}
func (m *mockDetailRepo) List(context.Context, string, int) ([]models.ReportDetail, string, error) {
	return nil, "", nil
}
func (m *mockDetailRepo) ApplyVerdict(ctx context.Context, postgresReportID string, verdict models.ExternalVerdict, overallPercentage float64, calculatedAt time.Time) (bool, error) {
	if m.applyVerdictFunc != nil {
		return m.applyVerdictFunc(ctx, postgresReportID, verdict, overallPercentage, calculatedAt)
	}
	return true, nil
}
func (m *mockDetailRepo) SetOverallScore(context.Context, string, float64, time.Time) (bool, error) {
	return true, nil
}
func (m *mockDetailRepo) UpdateContent(context.Context, string, *models.ReportDetail) (bool, error) {
	return true, nil
}
func (m *mockDetailRepo) Delete(context.Context, string) (bool, error) { return true, nil }

// mockScoreService implements service.ScoreService for testing
type mockScoreService struct {
	recalculateFunc func(ctx context.Context, postgresReportID string) (float64, error)
}

func (m *mockScoreService) Recalculate(ctx context.Context, postgresReportID string) (float64, error) {
	if m.recalculateFunc != nil {
		return m.recalculateFunc(ctx, postgresReportID)
	}
	return 0, nil
}

// mockEmitter implements ws.Emitter for testing
type mockEmitter struct {
	emitToRoomFunc   func(room, event string, data any)
	emitToSocketFunc func(socketID, event string, data any) bool
}

func (m *mockEmitter) EmitToRoom(room, event string, data any) {
	if m.emitToRoomFunc != nil {
		m.emitToRoomFunc(room, event, data)
	}
}

func (m *mockEmitter) EmitToSocket(socketID, event string, data any) bool {
	if m.emitToSocketFunc != nil {
		return m.emitToSocketFunc(socketID, event, data)
	}
	return true
}

func (m *mockEmitter) EmitToAll(string, any) {}
