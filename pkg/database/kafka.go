package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriterWithRetry 確認 broker 可連線後建立 Kafka Writer
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	if len(k.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}

	var err error
	for attempt := 1; attempt <= k.RetryCount; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var conn *kafka.Conn
		conn, err = kafka.DialContext(ctx, "tcp", k.Brokers[0])
		cancel()
		if err == nil {
			conn.Close()
			log.Printf("Kafka[%v] 連線成功 (嘗試 %d 次)", k.Brokers, attempt)
			return &kafka.Writer{
				Addr:                   kafka.TCP(k.Brokers...),
				Topic:                  k.Topic,
				Balancer:               &kafka.Hash{},
				AllowAutoTopicCreation: true,
			}, nil
		}

		log.Printf("Kafka[%v] 連線失敗 (嘗試 %d/%d): %v", k.Brokers, attempt, k.RetryCount, err)
		time.Sleep(k.RetryInterval)
	}

	return nil, fmt.Errorf("無法建立 Kafka Writer，經過 %d 次嘗試: %v", k.RetryCount, err)
}
