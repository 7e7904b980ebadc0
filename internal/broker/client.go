package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/AungKyawPhyo1142/be-sentria/internal/constants"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/logger"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/metrics"
)

// State is the broker connection lifecycle state
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Client owns the process-wide broker connection and the confirm-mode publish
// channel. Both are created lazily and recreated after an unexpected close;
// callers never hold a channel across calls, so a reconnect is transparent.
// When reconnecting exhausts the retry cap the client parks in StateFailed and
// Publish returns false instead of panicking or exiting.
type Client struct {
	url    string
	queues []string
	log    *logrus.Entry
	m      *metrics.Metrics

	// dial is swappable so connection handling is testable without a broker
	dial func(url string) (*amqp.Connection, error)

	mu           sync.Mutex
	state        State
	conn         *amqp.Connection
	ch           *amqp.Channel
	reconnecting bool
	stopped      bool
}

// NewClient creates a broker client for the given URL. The listed queues are
// declared durable on every successful (re)connect.
func NewClient(url string, queues []string, log *logger.Logger, m *metrics.Metrics) *Client {
	return &Client{
		url:    url,
		queues: queues,
		log:    log.WithComponent("broker"),
		m:      m,
		dial:   amqp.Dial,
	}
}

// State reports the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the connection and confirm channel if not already
// connected, and installs the close watcher that drives reconnection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.stopped {
		return fmt.Errorf("broker client is stopped")
	}
	if c.state == StateConnected && c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	c.state = StateConnecting
	conn, err := c.dial(c.url)
	if err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		c.state = StateDisconnected
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// Put the channel in confirm mode so Publish can report what the broker
	// durably accepted, not just what left the client.
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		c.state = StateDisconnected
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	for _, queue := range c.queues {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			c.state = StateDisconnected
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}

	c.conn = conn
	c.ch = ch
	c.state = StateConnected
	c.log.Info("connected to broker, confirm channel ready")

	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	go c.watchClose(closeCh)

	return nil
}

// watchClose invalidates cached state when the connection dies unexpectedly
// and kicks off the reconnect supervisor.
func (c *Client) watchClose(closeCh <-chan *amqp.Error) {
	amqpErr, ok := <-closeCh
	if !ok || amqpErr == nil {
		// Graceful shutdown; nothing to recover.
		return
	}

	c.log.WithField("reason", amqpErr.Error()).Error("broker connection closed unexpectedly")

	c.mu.Lock()
	c.conn = nil
	c.ch = nil
	c.state = StateDisconnected
	if c.stopped || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	go c.reconnectLoop()
}

// reconnectLoop retries with delay attempt*BrokerRetryDelay up to the cap.
// Exceeding the cap logs and gives up without exiting the process; the next
// Publish or Consume attempt will try again from scratch.
func (c *Client) reconnectLoop() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	for attempt := 1; attempt <= constants.MaxBrokerRetries; attempt++ {
		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return
		}

		time.Sleep(constants.BrokerRetryDelay * time.Duration(attempt))

		if c.m != nil {
			c.m.ReconnectAttempts.Inc()
		}
		c.log.WithField("attempt", attempt).Info("retrying broker connection")

		if err := c.Connect(context.Background()); err != nil {
			c.log.WithField("attempt", attempt).WithError(err).Error("broker reconnect failed")
			continue
		}
		return
	}

	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()
	c.log.Error("maximum broker reconnect attempts reached, giving up")
}

// Channel returns the live confirm channel, connecting lazily if needed.
// Callers must re-fetch it on every use instead of caching it.
func (c *Client) Channel(ctx context.Context) (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil || c.state != StateConnected {
		if err := c.connectLocked(ctx); err != nil {
			return nil, err
		}
	}
	return c.ch, nil
}

// serialize passes raw bytes and strings through and JSON-encodes anything else
func serialize(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(payload)
	}
}

// Publish sends the payload to the queue marked persistent and waits for the
// broker's per-message confirmation. It returns true only when the broker has
// durably accepted the message. Disconnection triggers one implicit reconnect;
// every failure mode returns false rather than an error so callers can mark
// work as failed instead of crashing.
func (c *Client) Publish(ctx context.Context, queue string, payload any) bool {
	body, err := serialize(payload)
	if err != nil {
		c.log.WithField("queue", queue).WithError(err).Error("failed to serialize payload")
		c.countPublish(queue, "failed")
		return false
	}

	ch, err := c.Channel(ctx)
	if err != nil {
		c.log.WithField("queue", queue).WithError(err).Error("no broker channel available for publish")
		c.countPublish(queue, "failed")
		return false
	}

	confirmCtx, cancel := context.WithTimeout(ctx, constants.PublishConfirmTimeout)
	defer cancel()

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(confirmCtx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		c.log.WithField("queue", queue).WithError(err).Error("failed to publish message")
		c.countPublish(queue, "failed")
		return false
	}

	acked, err := confirmation.WaitContext(confirmCtx)
	if err != nil {
		c.log.WithField("queue", queue).WithError(err).Error("timed out waiting for broker confirm")
		c.countPublish(queue, "failed")
		return false
	}
	if !acked {
		c.log.WithField("queue", queue).Error("message nacked by broker")
		c.countPublish(queue, "nacked")
		return false
	}

	c.log.WithFields(logrus.Fields{"queue": queue, "bytes": len(body)}).Info("message confirmed by broker")
	c.countPublish(queue, "confirmed")
	return true
}

func (c *Client) countPublish(queue, outcome string) {
	if c.m != nil {
		c.m.PublishCounter.WithLabelValues(queue, outcome).Inc()
	}
}

// Close shuts the channel then the connection. Errors from either are logged
// and swallowed so shutdown always makes forward progress. No reconnects are
// scheduled afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	c.stopped = true
	ch := c.ch
	conn := c.conn
	c.ch = nil
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if ch != nil {
		if err := ch.Close(); err != nil {
			c.log.WithError(err).Error("failed to close broker channel")
		} else {
			c.log.Info("broker channel closed")
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.log.WithError(err).Error("failed to close broker connection")
		} else {
			c.log.Info("broker connection closed")
		}
	}
}
