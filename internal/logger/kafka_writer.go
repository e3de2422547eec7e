package logger

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter 將 zerolog 輸出寫到 kafka topic
type KafkaWriter struct {
	w       messageWriter
	logID   atomic.Int64
	timeout time.Duration
}

func NewKafkaWriter(brokers []string, topic string) *KafkaWriter {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		MaxAttempts:  3,
	}
	return newKafkaWriter(w)
}

func newKafkaWriter(w messageWriter) *KafkaWriter {
	return &KafkaWriter{w: w, timeout: 5 * time.Second}
}

func (kw *KafkaWriter) Write(p []byte) (n int, err error) {
	if kw == nil {
		return 0, fmt.Errorf("kafka logger is not init")
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(kw.logID.Add(1)))

	// zerolog 會重複使用 p
	value := make([]byte, len(p))
	copy(value, p)

	ctx, cancel := context.WithTimeout(context.Background(), kw.timeout)
	defer cancel()
	if err := kw.w.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (kw *KafkaWriter) Close() error {
	return kw.w.Close()
}
