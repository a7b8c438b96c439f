package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes order events as JSON, keyed by branch so a consumer sees a
// branch's events in order.
type Kafka struct {
	Writer MessageWriter
}

// NewKafka writes synchronously with a short batch window so publishing
// after a commit adds little latency to the request.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{Writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (k *Kafka) Publish(ctx context.Context, ev OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	err = k.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.BranchID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.Writer.Close()
}
