// Package poller watches the USGS earthquake feed and fans alerts out to
// nearby connected clients through the notification queue.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AungKyawPhyo1142/be-sentria/internal/constants"
	"github.com/AungKyawPhyo1142/be-sentria/internal/models"
	"github.com/AungKyawPhyo1142/be-sentria/internal/repository"
	"github.com/AungKyawPhyo1142/be-sentria/internal/service"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/logger"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/metrics"
)

// feed mirrors the USGS GeoJSON summary format, reduced to the fields used
type feed struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag   *float64 `json:"mag"`
		Place string   `json:"place"`
		Time  int64    `json:"time"` // epoch milliseconds
		URL   string   `json:"url"`
		Title string   `json:"title"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // lon, lat, depth
	} `json:"geometry"`
}

// EarthquakePoller periodically fetches the past-hour earthquake feed,
// deduplicates events against the processed-event markers and enqueues one
// notification per connected client within the alert radius. Events are
// marked processed whether or not their notifications were accepted; an
// event gets one fan-out attempt per TTL window, never more.
type EarthquakePoller struct {
	feedURL           string
	notificationQueue string
	httpClient        *http.Client
	locations         repository.LocationRepository
	publisher         service.Publisher
	m                 *metrics.Metrics
	log               *logrus.Entry
}

// NewEarthquakePoller creates a new poller. feedURL may be empty to use the
// USGS past-hour feed.
func NewEarthquakePoller(
	feedURL string,
	notificationQueue string,
	locations repository.LocationRepository,
	publisher service.Publisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *EarthquakePoller {
	if feedURL == "" {
		feedURL = constants.USGSPastHourURL
	}
	return &EarthquakePoller{
		feedURL:           feedURL,
		notificationQueue: notificationQueue,
		httpClient:        &http.Client{Timeout: 30 * time.Second},
		locations:         locations,
		publisher:         publisher,
		m:                 m,
		log:               log.WithComponent("earthquake_poller"),
	}
}

// Run polls once immediately, then on every tick until the context is
// cancelled. A failed cycle is logged and the next tick tries again.
func (p *EarthquakePoller) Run(ctx context.Context) {
	p.log.WithField("interval", constants.PollInterval.String()).Info("earthquake poller started")

	if err := p.pollOnce(ctx); err != nil {
		p.log.WithError(err).Error("earthquake poll cycle failed")
	}

	ticker := time.NewTicker(constants.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("earthquake poller stopped")
			return
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				p.log.WithError(err).Error("earthquake poll cycle failed")
			}
		}
	}
}

func (p *EarthquakePoller) pollOnce(ctx context.Context) error {
	start := time.Now()
	if p.m != nil {
		p.m.PollCycles.Inc()
		defer func() { p.m.PollDuration.Observe(time.Since(start).Seconds()) }()
	}

	events, err := p.fetch(ctx)
	if err != nil {
		return err
	}

	for _, f := range events {
		if err := p.processEvent(ctx, f); err != nil {
			p.log.WithField("event_id", f.ID).WithError(err).Error("failed to process earthquake event")
		}
	}
	return nil
}

func (p *EarthquakePoller) fetch(ctx context.Context) ([]feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch earthquake feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("earthquake feed returned status %d", resp.StatusCode)
	}

	var body feed
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode earthquake feed: %w", err)
	}
	return body.Features, nil
}

func (p *EarthquakePoller) processEvent(ctx context.Context, f feature) error {
	log := p.log.WithField("event_id", f.ID)

	if f.ID == "" || len(f.Geometry.Coordinates) < 2 {
		log.Warn("skipping feed entry without id or coordinates")
		return nil
	}

	processed, err := p.locations.IsEventProcessed(ctx, f.ID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
	alert := p.buildAlert(f, lon, lat)

	socketIDs, err := p.locations.Nearby(ctx, lon, lat, constants.NotificationRadiusKm)
	if err != nil {
		return fmt.Errorf("failed to find nearby connections: %w", err)
	}

	queued := 0
	for _, socketID := range socketIDs {
		job := models.NotificationJob{
			SocketID:  socketID,
			EventName: constants.AlertEventName,
			Data:      alert,
		}
		if p.publisher.Publish(ctx, p.notificationQueue, job) {
			queued++
		} else {
			log.WithField("socket_id", socketID).Error("failed to enqueue earthquake notification")
		}
	}

	// Mark processed even when some notifications failed to enqueue. The
	// alternative is re-alerting everyone on the next cycle for up to a day.
	if err := p.locations.MarkEventProcessed(ctx, f.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	if p.m != nil {
		p.m.EventsProcessed.Inc()
	}

	log.WithFields(logrus.Fields{"nearby": len(socketIDs), "queued": queued, "place": f.Properties.Place}).
		Info("earthquake event processed")
	return nil
}

func (p *EarthquakePoller) buildAlert(f feature, lon, lat float64) models.AlertData {
	mag := 0.0
	if f.Properties.Mag != nil {
		mag = *f.Properties.Mag
	}

	title := f.Properties.Title
	if title == "" {
		title = fmt.Sprintf("M %.1f - %s", mag, f.Properties.Place)
	}

	return models.AlertData{
		ID:        f.ID,
		Title:     title,
		Body:      fmt.Sprintf("A magnitude %.1f earthquake occurred near %s.", mag, f.Properties.Place),
		URL:       f.Properties.URL,
		Magnitude: mag,
		Latitude:  lat,
		Longitude: lon,
		Time:      time.UnixMilli(f.Properties.Time).UTC().Format(time.RFC3339),
	}
}
