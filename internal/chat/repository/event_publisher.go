package repository

import (
	"context"
	"encoding/json"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/database"

	"github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
)

// EventPublisher chat event bus
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.ChatEvent) error
	Close() error
}

// kafkaWriter subset of *kafka.Writer
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaEventPublisher struct {
	writer kafkaWriter
}

// NewKafkaEventPublisher publish events keyed by room id, so one room stays on one partition
func NewKafkaEventPublisher(writer kafkaWriter) EventPublisher {
	return &kafkaEventPublisher{writer: writer}
}

func (p *kafkaEventPublisher) Publish(ctx context.Context, evt domain.ChatEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.RoomID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
	})
}

func (p *kafkaEventPublisher) Close() error {
	return p.writer.Close()
}

type rabbitEventPublisher struct {
	repo     database.RabbitRepo
	exchange string
}

// NewRabbitEventPublisher publish events on a topic exchange, routing key is the event type
func NewRabbitEventPublisher(repo database.RabbitRepo, exchange string) EventPublisher {
	return &rabbitEventPublisher{repo: repo, exchange: exchange}
}

func (p *rabbitEventPublisher) Publish(ctx context.Context, evt domain.ChatEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.repo.Publish(p.exchange, string(evt.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID,
		Timestamp:    time.UnixMilli(evt.OccurredAt),
		Body:         data,
	})
}

func (p *rabbitEventPublisher) Close() error {
	return p.repo.GetRabbit().Close()
}

type noopEventPublisher struct{}

// NewNoopEventPublisher drop every event, used when no bus is configured
func NewNoopEventPublisher() EventPublisher {
	return noopEventPublisher{}
}

func (noopEventPublisher) Publish(context.Context, domain.ChatEvent) error { return nil }
func (noopEventPublisher) Close() error                                    { return nil }
