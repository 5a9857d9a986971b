package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the kafka sink.
type KafkaConfig struct {
	Brokers      []string      `json:"brokers" yaml:"brokers"`
	Topic        string        `json:"topic" yaml:"topic" default:"trader.journal"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" default:"10s"`
}

// Envelope is the JSON value of every message. The key is the session ID
// so one session's records stay ordered within a partition.
type Envelope struct {
	Type string          `json:"type"` // trade, equity or session
	Data json.RawMessage `json:"data"`
}

// Kafka publishes records as JSON envelopes.
type Kafka struct {
	w       MessageWriter
	timeout time.Duration
}

// NewKafka builds a writer hashing on the message key.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("journal.kafka.brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("journal.kafka.topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: cfg.WriteTimeout,
	}
	return NewKafkaWithWriter(w, cfg.WriteTimeout), nil
}

// NewKafkaWithWriter wraps an existing writer.
func NewKafkaWithWriter(w MessageWriter, timeout time.Duration) *Kafka {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Kafka{w: w, timeout: timeout}
}

func (k *Kafka) RecordTrade(t TradeRecord) error {
	return k.publish("trade", t.SessionID, t)
}

func (k *Kafka) RecordEquity(e EquitySnapshot) error {
	return k.publish("equity", e.SessionID, e)
}

func (k *Kafka) RecordSession(r SessionRecord) error {
	return k.publish("session", r.SessionID, r)
}

func (k *Kafka) publish(kind, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	value, err := json.Marshal(Envelope{Type: kind, Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	return k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
}

func (k *Kafka) Close() error {
	return k.w.Close()
}
