package broker

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/AungKyawPhyo1142/be-sentria/internal/constants"
)

// Verdict is a handler's decision about a delivery
type Verdict int

const (
	// Ack marks the delivery fully processed
	Ack Verdict = iota
	// NackDiscard drops the delivery without requeue; used for malformed or
	// unresolvable messages that redelivery cannot fix
	NackDiscard
)

// Handler processes one delivery body and decides its fate. Handlers must be
// idempotent: the broker delivers at least once.
type Handler func(ctx context.Context, body []byte) Verdict

// Consume runs a durable manual-ack consume loop on the queue with prefetch 1,
// so each consumer instance processes strictly one message at a time and slow
// handling back-pressures the broker instead of piling up in-flight work.
// The loop re-establishes consumption after a lost connection, capped at the
// same retry limit as the client; a successful session resets the counter.
// Cancelling ctx stops the loop cleanly, letting in-flight work finish.
func (c *Client) Consume(ctx context.Context, queue string, handler Handler) error {
	log := c.log.WithField("queue", queue)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		ch, err := c.consumerChannel(ctx, queue)
		if err != nil {
			attempt++
			if attempt >= constants.MaxBrokerRetries {
				log.WithError(err).Error("maximum consumer connection attempts reached, consumer stopping")
				return fmt.Errorf("failed to start consuming from %s: %w", queue, err)
			}
			log.WithField("attempt", attempt).WithError(err).Error("failed to open consumer channel, retrying")
			if !sleepCtx(ctx, constants.BrokerRetryDelay*time.Duration(attempt)) {
				return nil
			}
			continue
		}

		deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			ch.Close()
			attempt++
			if attempt >= constants.MaxBrokerRetries {
				log.WithError(err).Error("maximum consume attempts reached, consumer stopping")
				return fmt.Errorf("failed to start consuming from %s: %w", queue, err)
			}
			log.WithField("attempt", attempt).WithError(err).Error("failed to start consuming, retrying")
			if !sleepCtx(ctx, constants.BrokerRetryDelay*time.Duration(attempt)) {
				return nil
			}
			continue
		}

		attempt = 0
		log.Info("consuming started")

		if done := c.consumeSession(ctx, queue, deliveries, handler); done {
			closeQuiet(ch, log)
			return nil
		}

		// Delivery channel drained without cancellation: the underlying
		// connection died. Loop around and re-subscribe.
		closeQuiet(ch, log)
		log.Warn("delivery stream closed, re-establishing consumer")
	}
}

// consumeSession drains deliveries until cancellation (returns true) or the
// stream closes (returns false).
func (c *Client) consumeSession(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler Handler) bool {
	log := c.log.WithField("queue", queue)
	for {
		select {
		case <-ctx.Done():
			return true
		case d, ok := <-deliveries:
			if !ok {
				return false
			}

			start := time.Now()
			verdict := handler(ctx, d.Body)
			switch verdict {
			case Ack:
				if err := d.Ack(false); err != nil {
					log.WithError(err).Error("failed to ack delivery")
				}
				if c.m != nil {
					c.m.ObserveConsume(queue, "ack", start)
				}
			case NackDiscard:
				if err := d.Nack(false, false); err != nil {
					log.WithError(err).Error("failed to nack delivery")
				}
				if c.m != nil {
					c.m.ObserveConsume(queue, "nack_discard", start)
				}
			}
		}
	}
}

// consumerChannel opens a dedicated channel on the shared connection with the
// queue declared durable and prefetch set to 1. Each consumer gets its own
// channel so per-consumer prefetch does not interfere with publishing.
func (c *Client) consumerChannel(ctx context.Context, queue string) (*amqp.Channel, error) {
	c.mu.Lock()
	if err := c.connectLocked(ctx); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	conn := c.conn
	c.mu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}
	return ch, nil
}

func closeQuiet(ch *amqp.Channel, log *logrus.Entry) {
	if err := ch.Close(); err != nil {
		log.WithError(err).Warn("failed to close consumer channel")
	}
}

// sleepCtx waits for d unless ctx is cancelled first; reports whether the full
// wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
