// Package amqp publishes domain events to a RabbitMQ exchange so other
// processes (notifiers, exporters) can react to changes.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/sakif/family-finance/internal/events"
)

const publishTimeout = 5 * time.Second

// message is the wire form of an event. Unlike events.Event it includes the
// audience, since consumers need it to route notifications.
type message struct {
	events.Event
	Audience []string `json:"audience"`
}

// channel is the subset of *amqp091.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends every event to a durable topic exchange with the event
// type ("transaction.created") as the routing key.
type Publisher struct {
	conn     *amqp091.Connection
	mu       sync.Mutex // amqp091 channels are not safe for concurrent publishes
	ch       channel
	exchange string
	logger   *slog.Logger
}

var _ events.Publisher = (*Publisher)(nil)

// Dial connects to url and declares the exchange.
func Dial(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: dialing broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp: opening channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp: declaring exchange %s: %w", exchange, err)
	}

	return &Publisher{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	body, err := json.Marshal(message{Event: e, Audience: e.Audience})
	if err != nil {
		return fmt.Errorf("amqp: encoding event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, e.Type, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    e.At,
		Type:         e.Type,
		Body:         body,
	})
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("amqp: publishing %s: %w", e.Type, err)
	}

	p.logger.Debug("event published",
		slog.String("type", e.Type),
		slog.String("id", e.ID),
		slog.String("exchange", p.exchange),
	)
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	chErr := p.ch.Close()
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("amqp: closing connection: %w", err)
		}
	}
	if chErr != nil {
		return fmt.Errorf("amqp: closing channel: %w", chErr)
	}
	return nil
}
