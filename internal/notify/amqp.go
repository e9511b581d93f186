package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// AMQP publishes notices as persistent JSON messages to a direct exchange.
type AMQP struct {
	mu         sync.Mutex
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	exchange   string
	routingKey string
}

// DialAMQP connects to url and declares the exchange.
func DialAMQP(url, exchange, routingKey string) (*AMQP, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQP{conn: conn, channel: channel, exchange: exchange, routingKey: routingKey}, nil
}

func (a *AMQP) Notify(ctx context.Context, n Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// channels are not safe for concurrent publishing
	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.channel.PublishWithContext(
		ctx,
		a.exchange,   // exchange
		a.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    n.At,
			Type:         string(n.Level),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	slog.DebugContext(ctx, "published notice", "op", n.Op, "exchange", a.exchange, "routing_key", a.routingKey)
	return nil
}

// Close closes the channel and the connection.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.channel != nil {
		_ = a.channel.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
