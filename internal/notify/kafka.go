// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/samber/oops"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/taskhub/taskhub/internal/auth"
)

// KafkaConfig configures KafkaNotifier.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Username     string
	Password     string
	TLS          bool
	WriteTimeout time.Duration
}

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON payload published for each notification. The consuming
// mail service renders and sends the email.
type Event struct {
	Type      string    `json:"type"`
	To        string    `json:"to"`
	Username  string    `json:"username"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	SentAt    time.Time `json:"sent_at"`
}

// KafkaNotifier publishes notifications to a Kafka topic keyed by recipient,
// so all mail for one address lands on one partition in order.
type KafkaNotifier struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaWriter builds a synchronous writer that waits for all in-sync replicas.
func NewKafkaWriter(cfg KafkaConfig) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, oops.Code("CONFIG_INVALID").Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("kafka topic is required")
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &kafka.Transport{}
	if cfg.Username != "" {
		transport.SASL = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	}
	if cfg.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		Transport:              transport,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: false,
	}, nil
}

// NewKafkaNotifier creates a KafkaNotifier publishing through w.
func NewKafkaNotifier(w MessageWriter) (*KafkaNotifier, error) {
	if w == nil {
		return nil, oops.Errorf("kafka writer is required")
	}
	return &KafkaNotifier{writer: w, now: time.Now}, nil
}

// Notify implements auth.Notifier.
func (k *KafkaNotifier) Notify(ctx context.Context, n auth.Notification) error {
	sentAt := k.now().UTC()
	value, err := json.Marshal(Event{
		Type:      string(n.Kind),
		To:        n.To,
		Username:  n.Username,
		Link:      n.Link,
		ExpiresAt: n.ExpiresAt.UTC(),
		SentAt:    sentAt,
	})
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").Wrap(err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.To),
		Value: value,
		Time:  sentAt,
	})
	if err != nil {
		return oops.Code("NOTIFY_KAFKA_FAILED").With("kind", string(n.Kind)).Wrap(err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaNotifier) Close() error {
	if err := k.writer.Close(); err != nil {
		return oops.Code("NOTIFY_KAFKA_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

var _ auth.Notifier = (*KafkaNotifier)(nil)
