package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"blog_service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func New(urlForConn string, queueName string) (*RabbitMQClient, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(urlForConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		queueName, true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

func (r *RabbitMQClient) SendMessage(ctx context.Context, msg models.Message) error {
	const op = "rabbitmq.SendMessage"

	body, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		"",
		r.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Handler processes one message. A nil error acks the delivery; an error
// rejects it, requeueing only when retry is true and the delivery is not a
// redelivery already.
type Handler func(ctx context.Context, msg models.Message) (retry bool, err error)

// StartReading consumes the queue until ctx is done or the channel closes.
// Bodies that are not a valid message are dropped.
func (r *RabbitMQClient) StartReading(ctx context.Context, handle Handler) error {
	const op = "rabbitmq.StartReading"

	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("%s: qos: %w", op, err)
	}

	deliveries, err := r.channel.ConsumeWithContext(ctx, r.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: consume: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: delivery channel closed", op)
			}

			process(ctx, d, handle)
		}
	}
}

// process settles one delivery. A failed message asking for a retry is
// requeued once; a delivery that already came back is dropped.
func process(ctx context.Context, d amqp.Delivery, handle Handler) {
	msg, err := Decode(d.Body)
	if err != nil {
		_ = d.Reject(false)
		return
	}

	retry, err := handle(ctx, msg)
	if err != nil {
		_ = d.Nack(false, retry && !d.Redelivered)
		return
	}

	_ = d.Ack(false)
}

func (r *RabbitMQClient) Close() {
	_ = r.channel.Close()
	_ = r.conn.Close()
}

func Encode(msg models.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func Decode(body []byte) (models.Message, error) {
	var msg models.Message

	if err := json.Unmarshal(body, &msg); err != nil {
		return models.Message{}, err
	}
	if msg.Email == "" || msg.Link == "" {
		return models.Message{}, fmt.Errorf("message without recipient or link")
	}

	return msg, nil
}
