// Package notify publishes analysis events to a message broker.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/KaramelBytes/spendloom-cli/internal/log"
	"github.com/rabbitmq/amqp091-go"
)

// Publisher sends AnalysisCompleted events.
type Publisher interface {
	Publish(ctx context.Context, m *AnalysisCompleted) error
	Close() error
}

// Nop discards events; used when no broker is configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, *AnalysisCompleted) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// channel is the subset of *amqp091.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPPublisher publishes JSON events to a durable direct exchange.
type AMQPPublisher struct {
	conn       *amqp091.Connection
	ch         channel
	exchange   string
	routingKey string
	logger     *log.Logger
}

// Dial connects to url and declares the exchange.
func Dial(url, exchange, routingKey string, logger *log.Logger) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := newPublisher(ch, exchange, routingKey, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange, routingKey string, logger *log.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = log.Discard()
	}
	err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange, routingKey: routingKey, logger: logger.WithComponent(log.ComponentAMQP)}, nil
}

// Publish sends m as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, m *AnalysisCompleted) error {
	body, err := m.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    m.RunID,
		Timestamp:    m.Timestamp,
		Type:         "analysis.completed",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	p.logger.Info("published analysis event", log.FieldRunID, m.RunID, "exchange", p.exchange, "routing_key", p.routingKey)
	return nil
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
