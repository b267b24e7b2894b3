package appkafka

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/chirp/internal/models"
	"github.com/segmentio/kafka-go"
)

// CheepPublisher turns cheep events into Kafka messages keyed by event type.
type CheepPublisher struct {
	Writer KafkaWriter
}

// Publish writes e to the cheep topic. A publisher without a writer drops
// events, which is how the server runs with Kafka disabled.
func (p *CheepPublisher) Publish(_ context.Context, e models.CheepEvent) error {
	if p == nil || p.Writer == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal cheep event: %w", err)
	}
	return p.Writer.WriteMessages(kafka.Message{Key: []byte(e.Type), Value: data})
}

// DecodeCheepEvent parses a message written by Publish.
func DecodeCheepEvent(msg kafka.Message) (models.CheepEvent, error) {
	var e models.CheepEvent
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return models.CheepEvent{}, err
	}
	if e.Type == "" {
		e.Type = string(msg.Key)
	}
	return e, nil
}
