package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/danielbelay23/data-pipelines/pkg/config"
	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/retry"
	"github.com/danielbelay23/data-pipelines/pkg/session"
)

// Publisher is the part of an AMQP channel the notifier publishes through
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// SessionMessage is the JSON body published for every run
type SessionMessage struct {
	Event     string          `json:"event"`
	Summary   session.Summary `json:"summary"`
	Timestamp time.Time       `json:"timestamp"`
}

// AMQP publishes run summaries to a durable direct exchange
type AMQP struct {
	publisher  Publisher
	exchange   string
	routingKey string
	retry      *retry.Config
	logger     logger.Logger
	closers    []func() error
	now        func() time.Time
}

// DialAMQP connects, declares the exchange and queue, and binds them
func DialAMQP(cfg config.NotificationConfig, log logger.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	n := NewAMQP(ch, cfg.Exchange, cfg.RoutingKey, log)
	n.closers = []func() error{ch.Close, conn.Close}
	n.logger.InfoWithFields("Connected to rabbitmq", map[string]interface{}{
		"exchange":    cfg.Exchange,
		"queue":       cfg.Queue,
		"routing_key": cfg.RoutingKey,
	})
	return n, nil
}

func declare(ch *amqp.Channel, cfg config.NotificationConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// NewAMQP wraps an already declared publisher
func NewAMQP(p Publisher, exchange, routingKey string, log logger.Logger) *AMQP {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("notifier", "amqp")

	rc := retry.DefaultConfig()
	rc.Logger = log
	return &AMQP{
		publisher:  p,
		exchange:   exchange,
		routingKey: routingKey,
		retry:      rc,
		logger:     log,
		now:        time.Now,
	}
}

func (a *AMQP) Notify(ctx context.Context, s session.Summary) error {
	body, err := json.Marshal(SessionMessage{
		Event:     "session.completed",
		Summary:   s,
		Timestamp: a.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    s.SessionID,
		Timestamp:    a.now(),
		Body:         body,
	}
	err = retry.Do(ctx, func(ctx context.Context) error {
		return a.publisher.PublishWithContext(ctx, a.exchange, a.routingKey, false, false, msg)
	}, a.retry)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	a.logger.DebugWithFields("Published session summary", map[string]interface{}{
		"session_id": s.SessionID,
	})
	return nil
}

func (a *AMQP) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
