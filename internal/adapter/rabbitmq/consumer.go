package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tapstand/kiosk/internal/interfaces"
)

const (
	tapQueue    = "tap_queue"
	dlqExchange = "pours_dlq"
	dlqQueue    = "tap_queue_dlq"
)

type consumer struct {
	conn     Connection
	prefetch int
}

func NewConsumer(conn Connection, prefetch int) interfaces.MessageConsumer {
	return &consumer{conn: conn, prefetch: prefetch}
}

func (c *consumer) ConsumePourJobs(ctx context.Context, handler interfaces.PourJobHandler) error {
	for {
		err := c.consumePourJobsOnce(ctx, handler)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		log.Printf("Pour jobs consumer disconnected: %v. Reconnecting in 5 seconds...", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *consumer) ConsumeStatusUpdates(ctx context.Context, handler interfaces.StatusUpdateHandler) error {
	for {
		err := c.consumeStatusUpdatesOnce(ctx, handler)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		log.Printf("Status consumer disconnected: %v. Reconnecting in 5 seconds...", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *consumer) consumePourJobsOnce(ctx context.Context, handler interfaces.PourJobHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := c.setupPourInfrastructure(ch); err != nil {
		return err
	}

	msgs, err := ch.Consume(tapQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}

			if err := handler(ctx, msg.Body); err != nil {
				if strings.Contains(err.Error(), "cannot handle beverage kind") {
					// Requeue for a station that pours this kind.
					msg.Nack(false, true)
				} else {
					msg.Nack(false, false)
				}
			} else {
				msg.Ack(false)
			}
		}
	}
}

func (c *consumer) consumeStatusUpdatesOnce(ctx context.Context, handler interfaces.StatusUpdateHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if err := ch.ExchangeDeclare(statusExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", statusExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}

			// Status updates are best effort.
			_ = handler(ctx, msg.Body)
		}
	}
}

func (c *consumer) setupPourInfrastructure(ch Channel) error {
	if err := ch.ExchangeDeclare(poursExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare pours exchange: %w", err)
	}

	if err := ch.ExchangeDeclare(dlqExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(dlqQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	if err := ch.QueueBind(dlqQueue, tapQueue, dlqExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	args := map[string]interface{}{
		"x-dead-letter-exchange":    dlqExchange,
		"x-dead-letter-routing-key": tapQueue,
	}
	if _, err := ch.QueueDeclare(tapQueue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare tap queue: %w", err)
	}

	if err := ch.QueueBind(tapQueue, "tap.#", poursExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind tap queue: %w", err)
	}

	return nil
}
