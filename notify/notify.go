// Package notify tells the outside world about new submissions.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

// SubmissionEvent is published once a submission has been stored.
type SubmissionEvent struct {
	SubmissionID string    `json:"submissionId"`
	FormID       string    `json:"formId"`
	FormSlug     string    `json:"formSlug"`
	FormTitle    string    `json:"formTitle"`
	OwnerID      string    `json:"ownerId"`
	Recipients   []string  `json:"recipients"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

type Publisher interface {
	PublishSubmission(ctx context.Context, ev SubmissionEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishSubmission(context.Context, SubmissionEvent) error { return nil }

// AMQPPublisher sends events as JSON messages to a durable RabbitMQ queue.
type AMQPPublisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

func Dial(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: channel, queue: queue}, nil
}

func (p *AMQPPublisher) PublishSubmission(ctx context.Context, ev SubmissionEvent) error {
	msg, err := newMessage(ev)
	if err != nil {
		return err
	}

	// channels must not be shared by concurrent publishers
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, "", p.queue, false, false, msg)
}

func newMessage(ev SubmissionEvent) (amqp.Publishing, error) {
	if ev.Recipients == nil {
		ev.Recipients = []string{}
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.SubmissionID,
		Type:         "submission.created",
		Timestamp:    ev.SubmittedAt,
		Body:         body,
	}, nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
