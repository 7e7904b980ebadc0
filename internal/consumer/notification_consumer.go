package consumer

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/AungKyawPhyo1142/be-sentria/internal/broker"
	"github.com/AungKyawPhyo1142/be-sentria/internal/constants"
	"github.com/AungKyawPhyo1142/be-sentria/internal/models"
	"github.com/AungKyawPhyo1142/be-sentria/internal/ws"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/logger"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/metrics"
)

// NotificationConsumer delivers queued alerts to their target websocket
// connections. Delivery is fire-and-forget; a socket that disconnected
// between enqueue and delivery just misses the alert.
type NotificationConsumer struct {
	validate *validator.Validate
	emitter  ws.Emitter
	m        *metrics.Metrics
	log      *logrus.Entry
}

// NewNotificationConsumer creates a new notification consumer
func NewNotificationConsumer(emitter ws.Emitter, m *metrics.Metrics, log *logger.Logger) *NotificationConsumer {
	return &NotificationConsumer{
		validate: validator.New(),
		emitter:  emitter,
		m:        m,
		log:      log.WithComponent("notification_consumer"),
	}
}

// Handle processes one notification delivery
func (c *NotificationConsumer) Handle(ctx context.Context, body []byte) broker.Verdict {
	var job models.NotificationJob
	if err := json.Unmarshal(body, &job); err != nil {
		c.log.WithError(err).Error("discarding malformed notification job")
		return broker.NackDiscard
	}
	if err := c.validate.Struct(job); err != nil {
		c.log.WithError(err).Error("discarding notification job without a socket id")
		return broker.NackDiscard
	}

	event := job.EventName
	if event == "" {
		event = constants.AlertEventName
	}

	if !c.emitter.EmitToSocket(job.SocketID, event, job.Data) {
		// Not an error: the socket dropped after the alert was queued.
		c.log.WithField("socket_id", job.SocketID).Warn("notification target no longer connected")
		return broker.Ack
	}

	if c.m != nil {
		c.m.NotificationsSent.Inc()
	}
	c.log.WithFields(logrus.Fields{"socket_id": job.SocketID, "event": event}).Info("notification delivered")
	return broker.Ack
}
