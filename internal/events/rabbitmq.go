package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	appID          = "storyworld"
	routingPrefix  = "story."
	publishTimeout = 5 * time.Second
	publishTries   = 3
	dialTries      = 5
	dialRetryDelay = 2 * time.Second
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes events to a durable topic exchange with the
// routing key "story.<type>".
type RabbitMQPublisher struct {
	channel    Channel
	conn       *amqp.Connection
	exchange   string
	retryDelay time.Duration
	logger     *zap.Logger
}

var _ Publisher = (*RabbitMQPublisher)(nil)

// Dial connects to RabbitMQ, retrying a few times, and declares the exchange.
func Dial(url, exchange string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= dialTries; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", dialTries),
			zap.Duration("retry_delay", dialRetryDelay),
			zap.Error(err),
		)
		if attempt < dialTries {
			time.Sleep(dialRetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	p, err := NewRabbitMQPublisher(ch, exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewRabbitMQPublisher declares the exchange on ch and returns a publisher using it.
func NewRabbitMQPublisher(ch Channel, exchange string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	logger = logger.Named("EventPublisher")
	logger.Info("RabbitMQ exchange declared", zap.String("exchange", exchange))
	return &RabbitMQPublisher{
		channel:    ch,
		exchange:   exchange,
		retryDelay: 100 * time.Millisecond,
		logger:     logger,
	}, nil
}

// Publish sends e, retrying transient failures.
func (p *RabbitMQPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	key := routingPrefix + string(e.Type)
	for attempt := 1; attempt <= publishTries; attempt++ {
		err = p.channel.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID,
			Timestamp:    e.Timestamp,
			Type:         string(e.Type),
			AppId:        appID,
			Body:         body,
		})
		if err == nil {
			p.logger.Debug("Event published", zap.String("type", string(e.Type)), zap.String("storyID", e.StoryID))
			return nil
		}
		p.logger.Warn("Event publish failed",
			zap.Int("attempt", attempt),
			zap.String("routing_key", key),
			zap.Error(err),
		)
		if errors.Is(err, amqp.ErrClosed) || ctx.Err() != nil {
			break
		}
		if attempt < publishTries {
			time.Sleep(time.Duration(attempt) * p.retryDelay)
		}
	}
	return fmt.Errorf("publish %s event after retries: %w", e.Type, err)
}

// Close closes the channel and, when the publisher dialled it, the connection.
func (p *RabbitMQPublisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}
