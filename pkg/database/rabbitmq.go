package database

import (
	"fmt"
	"log"
	"time"

	"github.com/streadway/amqp"
)

// RabbitRepo definition rabbit repo
type RabbitRepo interface {
	GetRabbit() *amqp.Channel
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type rabbitRepo struct {
	channel *amqp.Channel
}

// NewRabbitRepository create a RabbitRepository
func NewRabbitRepository(db *amqp.Channel) RabbitRepo {
	return &rabbitRepo{channel: db}
}

// ConnectRabbitMQWithRetry 嘗試連線到 RabbitMQ，固定間隔重試
func ConnectRabbitMQWithRetry(d Connection) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for attempt := 1; attempt <= d.RetryCount; attempt++ {
		conn, err = amqp.Dial(d.ConnectStr)
		if err == nil {
			log.Printf("RabbitMQ 連線成功 (嘗試 %d 次)", attempt)
			return conn, nil
		}

		log.Printf("RabbitMQ 連線失敗 (嘗試 %d/%d): %v", attempt, d.RetryCount, err)
		time.Sleep(d.RetryInterval)
	}

	return nil, fmt.Errorf("無法連線 RabbitMQ，經過 %d 次嘗試: %v", d.RetryCount, err)
}

// GetRabbitMQChannelWithRetry 使用已有的 RabbitMQ 連線嘗試取得 Channel
func GetRabbitMQChannelWithRetry(conn *amqp.Connection, maxRetries int, baseDelay time.Duration) (*amqp.Channel, error) {
	var ch *amqp.Channel
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ch, err = conn.Channel()
		if err == nil {
			return ch, nil
		}

		log.Printf("建立 RabbitMQ Channel 失敗 (嘗試 %d/%d): %v", attempt, maxRetries, err)
		time.Sleep(baseDelay)
	}

	return nil, fmt.Errorf("無法取得 RabbitMQ Channel，經過 %d 次嘗試: %v", maxRetries, err)
}

func (r *rabbitRepo) GetRabbit() *amqp.Channel {
	return r.channel
}

func (r *rabbitRepo) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return r.channel.Publish(exchange, key, mandatory, immediate, msg)
}

// DeclareTopicExchange declare a durable topic exchange
func DeclareTopicExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	return nil
}
