package messaging

import (
	"context"
	"log/slog"

	"eum-chat/internal/websocket"
)

// MessageConsumer binds a private queue to the messages exchange and
// feeds every delivery into the local hub. This is how a message stored
// on one server instance reaches subscribers connected to another.
type MessageConsumer struct {
	rmq *RabbitMQ
	hub *websocket.Hub
}

func NewMessageConsumer(rmq *RabbitMQ, hub *websocket.Hub) *MessageConsumer {
	return &MessageConsumer{
		rmq: rmq,
		hub: hub,
	}
}

// Start declares an instance-private queue, binds it to the fanout
// exchange and consumes until ctx is cancelled.
func (c *MessageConsumer) Start(ctx context.Context) error {
	queue, err := c.rmq.channel.QueueDeclare(
		"",    // auto-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	if err := c.rmq.channel.QueueBind(
		queue.Name,       // queue name
		"",               // routing key
		messagesExchange, // exchange
		false,
		nil,
	); err != nil {
		return err
	}

	msgs, err := c.rmq.channel.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return err
	}

	slog.Info("started consuming relayed messages",
		slog.String("queue", queue.Name),
		slog.String("exchange", messagesExchange))

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("stopping message consumer")
				return

			case delivery, ok := <-msgs:
				if !ok {
					slog.Warn("message consumer channel closed")
					return
				}

				roomID, err := decodeRouting(delivery.Body)
				if err != nil {
					slog.Warn("dropping unroutable delivery",
						slog.String("error", err.Error()))
					continue
				}

				c.hub.Broadcast(roomID, delivery.Body)
			}
		}
	}()

	return nil
}
