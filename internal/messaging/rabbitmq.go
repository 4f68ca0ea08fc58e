package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"eum-chat/internal/domain"
	"eum-chat/internal/observability"
	"eum-chat/internal/websocket"

	amqp "github.com/rabbitmq/amqp091-go"
)

// messagesExchange is the fanout exchange persisted chat messages are
// relayed through. Every server instance binds its own queue, so a
// message stored by one instance reaches subscribers connected to any.
const messagesExchange = "chat.messages"

// RabbitMQ is the broker side of the real-time broadcaster: it publishes
// persisted messages to the fanout exchange (implementing the chat
// services' Broadcaster) and hands consumed deliveries to the local hub.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry dials the broker until it answers or ctx expires.
// Useful at startup when the broker container is still coming up.
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	backoff := time.Second

	for {
		rmq, err := NewRabbitMQ(url)
		if err == nil {
			return rmq, nil
		}

		slog.Warn("rabbitmq not ready, retrying",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up connecting to RabbitMQ: %w", err)
		case <-time.After(backoff):
		}

		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

// Setup declares the fanout exchange for message relay.
func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		messagesExchange, // name
		"fanout",         // type
		true,             // durable
		false,            // auto-deleted
		false,            // internal
		false,            // no-wait
		nil,              // arguments
	); err != nil {
		return fmt.Errorf("failed to declare messages exchange: %w", err)
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

// PublishMessage relays a persisted message to the fanout exchange. The
// payload is the same topic frame subscribers receive, so consumers can
// hand it to the hub untouched.
func (r *RabbitMQ) PublishMessage(ctx context.Context, message *domain.Message) error {
	body, err := websocket.MarshalMessageFrame(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message frame: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		messagesExchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Transient,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	observability.MessagesPublished.WithLabelValues(fmt.Sprintf("%d", message.RoomID)).Inc()
	slog.Debug("relayed message to exchange",
		slog.Int64("room_id", message.RoomID),
		slog.Int64("message_id", message.ID))
	return nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// routingEnvelope is the slice of the frame the consumer needs to route
// a delivery to the right room topic.
type routingEnvelope struct {
	RoomID int64 `json:"roomId"`
}

func decodeRouting(body []byte) (int64, error) {
	var env routingEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, err
	}
	if env.RoomID == 0 {
		return 0, fmt.Errorf("delivery missing roomId")
	}
	return env.RoomID, nil
}
