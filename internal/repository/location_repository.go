package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/AungKyawPhyo1142/be-sentria/internal/constants"
)

// LocationRepository is the geospatial fan-out index: it maps live websocket
// connection IDs to their last reported coordinate, and remembers which
// external feed events have already been processed. It is internal only and
// does no ownership checks; any connection id can be queried or removed.
type LocationRepository interface {
	// Upsert records the connection's last known position
	Upsert(ctx context.Context, socketID string, lon, lat float64) error

	// Remove drops a disconnected connection from the index
	Remove(ctx context.Context, socketID string) error

	// Nearby returns connection IDs within radiusKm of the point, measured
	// great-circle by the store, not as a bounding box
	Nearby(ctx context.Context, lon, lat, radiusKm float64) ([]string, error)

	// MarkEventProcessed writes the dedup marker with its TTL; the marker
	// expires naturally, there is no explicit delete
	MarkEventProcessed(ctx context.Context, eventID string) error

	// IsEventProcessed reports whether the event was already handled within
	// the TTL window
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
}

type locationRepository struct {
	client *redis.Client
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(client *redis.Client) LocationRepository {
	return &locationRepository{client: client}
}

func (r *locationRepository) Upsert(ctx context.Context, socketID string, lon, lat float64) error {
	err := r.client.GeoAdd(ctx, constants.UserLocationsKey, &redis.GeoLocation{
		Name:      socketID,
		Longitude: lon,
		Latitude:  lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to upsert location for %s: %w", socketID, err)
	}
	return nil
}

func (r *locationRepository) Remove(ctx context.Context, socketID string) error {
	// GEO keys are sorted sets underneath, so ZREM removes the member
	err := r.client.ZRem(ctx, constants.UserLocationsKey, socketID).Err()
	if err != nil {
		return fmt.Errorf("failed to remove location for %s: %w", socketID, err)
	}
	return nil
}

func (r *locationRepository) Nearby(ctx context.Context, lon, lat, radiusKm float64) ([]string, error) {
	members, err := r.client.GeoSearch(ctx, constants.UserLocationsKey, &redis.GeoSearchQuery{
		Longitude:  lon,
		Latitude:   lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby connections: %w", err)
	}
	return members, nil
}

func (r *locationRepository) MarkEventProcessed(ctx context.Context, eventID string) error {
	key := fmt.Sprintf("%s%s", constants.ProcessedEventKeyPrefix, eventID)
	err := r.client.Set(ctx, key, "processed", constants.ProcessedEventTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to mark event %s processed: %w", eventID, err)
	}
	return nil
}

func (r *locationRepository) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf("%s%s", constants.ProcessedEventKeyPrefix, eventID)

	_, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check event %s: %w", eventID, err)
	}
	return true, nil
}
