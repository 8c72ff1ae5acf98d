// Package kafka streams registry events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "profilereg/pkg/platform/audit"
)

// Store implements audit.Store by producing one record per event. Records are
// keyed by account so a partition preserves per-account order.
type Store struct {
	client *kgo.Client
	topic  string
}

// New connects a producer for topic.
func New(brokers []string, topic string) (*Store, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Store{client: client, topic: topic}, nil
}

// Client exposes the underlying client for admin operations and health checks.
func (s *Store) Client() *kgo.Client {
	return s.client
}

// payload is the JSON record value. Field names are part of the wire contract
// for downstream consumers.
type payload struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Category  string `json:"category"`
	Account   string `json:"account"`
	Amount    uint64 `json:"amount,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}

// Encode renders the record value for event.
func Encode(event audit.Event) ([]byte, error) {
	p := payload{
		ID:        uuid.NewString(),
		Kind:      string(event.Kind),
		Category:  string(event.Kind.Category()),
		Account:   event.Account.String(),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
	}
	if event.Kind.CarriesAmount() {
		p.Amount = uint64(event.Amount)
	}
	return json.Marshal(p)
}

// Append produces event synchronously.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	value, err := Encode(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	record := &kgo.Record{
		Key:       []byte(event.Account.String()),
		Value:     value,
		Timestamp: event.Timestamp,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "category", Value: []byte(event.Kind.Category())},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

// Health pings the brokers.
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close flushes and closes the producer.
func (s *Store) Close() {
	s.client.Close()
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(client)
	_, err := adm.CreateTopic(ctx, partitions, replication, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}
