// Package events publishes ticket lifecycle messages to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	TopicTicketIssued    = "ticket.issued"
	TopicTicketValidated = "ticket.validated"
)

// TicketIssuedMessage is published after a ticket PDF has been saved.
type TicketIssuedMessage struct {
	TicketCode     string    `json:"ticket_code"`
	HolderName     string    `json:"holder_name"`
	RecipientEmail string    `json:"recipient_email"`
	Event          string    `json:"event"`
	FileName       string    `json:"file_name"`
	Station        string    `json:"station,omitempty"`
	IssuedAt       time.Time `json:"issued_at"`
}

// TicketValidatedMessage is published after the backend accepted a scan.
type TicketValidatedMessage struct {
	TicketCode  string    `json:"ticket_code"`
	TicketID    int       `json:"ticket_id,omitempty"`
	Message     string    `json:"message"`
	Station     string    `json:"station,omitempty"`
	ValidatedAt time.Time `json:"validated_at"`
}

type Publisher interface {
	Publish(ctx context.Context, topic string, message any) error
}

// Nop drops every message. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url string) (*amqp.Connection, channel, error)

// Broker publishes JSON messages on a topic exchange, reconnecting lazily
// when the connection drops.
type Broker struct {
	url      string
	exchange string
	log      logrus.FieldLogger
	dial     dialFunc

	mu      sync.Mutex
	conn    *amqp.Connection
	channel channel
}

// NewBroker connects and declares the exchange.
func NewBroker(url, exchange string, log logrus.FieldLogger) (*Broker, error) {
	b := &Broker{url: url, exchange: exchange, log: log}
	b.dial = b.dialAMQP
	if err := b.ensureConnection(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Broker) dialAMQP(url string) (*amqp.Connection, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", b.exchange, err)
	}
	return conn, ch, nil
}

func (b *Broker) ensureConnection() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel != nil && (b.conn == nil || !b.conn.IsClosed()) {
		return nil
	}
	if b.conn != nil && !b.conn.IsClosed() {
		b.conn.Close()
	}
	conn, ch, err := b.dial(b.url)
	if err != nil {
		b.log.WithError(err).Warn("rabbitmq unavailable")
		return err
	}
	b.conn, b.channel = conn, ch
	return nil
}

func (b *Broker) Publish(ctx context.Context, topic string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	if err := b.ensureConnection(); err != nil {
		return err
	}

	b.mu.Lock()
	ch := b.channel
	b.mu.Unlock()

	err = ch.PublishWithContext(ctx, b.exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		b.log.WithError(err).WithField("topic", topic).Warn("publish failed")
		b.mu.Lock()
		b.channel = nil
		b.mu.Unlock()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	b.log.WithField("topic", topic).Debug("event published")
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			b.log.WithError(err).Warn("close channel")
		}
		b.channel = nil
	}
	if b.conn != nil {
		err := b.conn.Close()
		b.conn = nil
		return err
	}
	return nil
}

// Recorder keeps published messages in memory.
type Recorder struct {
	mu       sync.Mutex
	Messages []Recorded
}

type Recorded struct {
	Topic   string
	Message any
}

func (r *Recorder) Publish(_ context.Context, topic string, message any) error {
	r.mu.Lock()
	r.Messages = append(r.Messages, Recorded{Topic: topic, Message: message})
	r.mu.Unlock()
	return nil
}

// Topics lists the topics published so far, in order.
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		out = append(out, m.Topic)
	}
	return out
}
