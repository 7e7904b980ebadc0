package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AungKyawPhyo1142/be-sentria/internal/models"
)

// ReportDetailRepository persists full report bodies in the document store.
// Details are written once; only the factCheck sub-document is mutated later.
type ReportDetailRepository interface {
	Insert(ctx context.Context, detail *models.ReportDetail) (string, error)
	GetByID(ctx context.Context, hexID string) (*models.ReportDetail, error)
	GetByReportID(ctx context.Context, postgresReportID string) (*models.ReportDetail, error)
	List(ctx context.Context, cursor string, limit int) ([]models.ReportDetail, string, error)

	// ApplyVerdict overwrites the externalVerdict sub-document and the
	// aggregate fields in one $set. A plain overwrite, never an increment,
	// so re-applying the same verdict leaves the document unchanged.
	// Reports whether a document matched.
	ApplyVerdict(ctx context.Context, postgresReportID string, verdict models.ExternalVerdict, overallPercentage float64, calculatedAt time.Time) (bool, error)

	// SetOverallScore stores a recomputed aggregate score. Reports whether a
	// document matched.
	SetOverallScore(ctx context.Context, postgresReportID string, overallPercentage float64, calculatedAt time.Time) (bool, error)

	UpdateContent(ctx context.Context, hexID string, detail *models.ReportDetail) (bool, error)
	Delete(ctx context.Context, hexID string) (bool, error)
}

type reportDetailRepository struct {
	collection *mongo.Collection
}

// NewReportDetailRepository creates a new report detail repository on the
// given collection
func NewReportDetailRepository(collection *mongo.Collection) ReportDetailRepository {
	return &reportDetailRepository{collection: collection}
}

func (r *reportDetailRepository) Insert(ctx context.Context, detail *models.ReportDetail) (string, error) {
	result, err := r.collection.InsertOne(ctx, detail)
	if err != nil {
		return "", fmt.Errorf("failed to insert report detail: %w", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	return oid.Hex(), nil
}

func (r *reportDetailRepository) GetByID(ctx context.Context, hexID string) (*models.ReportDetail, error) {
	oid, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return nil, fmt.Errorf("invalid document id %q: %w", hexID, err)
	}

	detail := &models.ReportDetail{}
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(detail)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report detail %s: %w", hexID, err)
	}
	return detail, nil
}

func (r *reportDetailRepository) GetByReportID(ctx context.Context, postgresReportID string) (*models.ReportDetail, error) {
	detail := &models.ReportDetail{}
	err := r.collection.FindOne(ctx, bson.M{"postgresReportId": postgresReportID}).Decode(detail)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report detail for report %s: %w", postgresReportID, err)
	}
	return detail, nil
}

// List returns details newest-first, cursor-paginated by document id.
// The returned cursor is empty when there is no next page.
func (r *reportDetailRepository) List(ctx context.Context, cursor string, limit int) ([]models.ReportDetail, string, error) {
	if limit <= 0 {
		limit = 10
	}

	filter := bson.M{}
	if cursor != "" {
		oid, err := primitive.ObjectIDFromHex(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		filter["_id"] = bson.M{"$lt": oid}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit + 1)) // one extra to detect the next page

	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list report details: %w", err)
	}
	defer cur.Close(ctx)

	details := []models.ReportDetail{}
	if err := cur.All(ctx, &details); err != nil {
		return nil, "", fmt.Errorf("failed to decode report details: %w", err)
	}

	nextCursor := ""
	if len(details) > limit {
		details = details[:limit]
		nextCursor = details[limit-1].ID.Hex()
	}
	return details, nextCursor, nil
}

func (r *reportDetailRepository) ApplyVerdict(ctx context.Context, postgresReportID string, verdict models.ExternalVerdict, overallPercentage float64, calculatedAt time.Time) (bool, error) {
	update := bson.M{
		"$set": bson.M{
			"factCheck.externalVerdict.status":          verdict.Status,
			"factCheck.externalVerdict.confidenceScore": verdict.ConfidenceScore,
			"factCheck.externalVerdict.narrative":       verdict.Narrative,
			"factCheck.externalVerdict.evidence":        verdict.Evidence,
			"factCheck.externalVerdict.serviceProvider": verdict.ServiceProvider,
			"factCheck.externalVerdict.processingError": verdict.ProcessingError,
			"factCheck.externalVerdict.lastCheckedAt":   verdict.LastCheckedAt,
			"factCheck.overallPercentage":               overallPercentage,
			"factCheck.lastCalculatedAt":                calculatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"postgresReportId": postgresReportID}, update)
	if err != nil {
		return false, fmt.Errorf("failed to apply verdict for report %s: %w", postgresReportID, err)
	}
	return result.MatchedCount > 0, nil
}

func (r *reportDetailRepository) SetOverallScore(ctx context.Context, postgresReportID string, overallPercentage float64, calculatedAt time.Time) (bool, error) {
	update := bson.M{
		"$set": bson.M{
			"factCheck.overallPercentage": overallPercentage,
			"factCheck.lastCalculatedAt":  calculatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"postgresReportId": postgresReportID}, update)
	if err != nil {
		return false, fmt.Errorf("failed to store overall score for report %s: %w", postgresReportID, err)
	}
	return result.MatchedCount > 0, nil
}

func (r *reportDetailRepository) UpdateContent(ctx context.Context, hexID string, detail *models.ReportDetail) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return false, fmt.Errorf("invalid document id %q: %w", hexID, err)
	}

	update := bson.M{
		"$set": bson.M{
			"reportName":        detail.ReportName,
			"description":       detail.Description,
			"incidentType":      detail.IncidentType,
			"severity":          detail.Severity,
			"incidentTimestamp": detail.IncidentTimestamp,
			"location":          detail.Location,
			"city":              detail.City,
			"country":           detail.Country,
			"media":             detail.Media,
			"updatedAt":         detail.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return false, fmt.Errorf("failed to update report detail %s: %w", hexID, err)
	}
	return result.MatchedCount > 0, nil
}

func (r *reportDetailRepository) Delete(ctx context.Context, hexID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return false, fmt.Errorf("invalid document id %q: %w", hexID, err)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("failed to delete report detail %s: %w", hexID, err)
	}
	return result.DeletedCount > 0, nil
}
