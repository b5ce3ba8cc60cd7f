package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"onfa-ticketing/internal/logger"
	"onfa-ticketing/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
	Topic  string
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{Writer: writer, Topic: topic, Logger: log}
}

// TicketEventMessage keys by ticket id so one ticket's history stays in one partition.
func TicketEventMessage(event models.TicketEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.TicketID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("ticket_status_changed")},
		},
	}, nil
}

func (p *Producer) PublishTicketEvent(ctx context.Context, event models.TicketEvent) error {
	msg, err := TicketEventMessage(event)
	if err != nil {
		return err
	}
	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.Topic, err)
	}
	p.Logger.LogKafka("PUBLISH", p.Topic, fmt.Sprintf("%s %s -> %s", event.TicketID, event.FromStatus, event.ToStatus))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
