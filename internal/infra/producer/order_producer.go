package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

var ErrProducerClosed = errors.New("producer closed")

const (
	EventTypeOrderPlaced = "order_placed"
	defaultRetryAttempts = 3
)

// Writer kafka.Writer 的子集，方便測試替換
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers       []string
	Topic         string
	RetryAttempts int
}

func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka brokers is required")
	}
	if c.Topic == "" {
		return errors.New("kafka topic is required")
	}
	return nil
}

// NewKafkaWriter 同步寫入，key 相同的訊息進同一個 partition
func NewKafkaWriter(cfg Config, logger *zerolog.Logger) (*kafka.Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		MaxAttempts:  cfg.RetryAttempts,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network string, address string) (net.Conn, error) {
				dialer := &kafka.Dialer{
					Timeout:   10 * time.Second,
					DualStack: true,
					KeepAlive: 30 * time.Second,
				}
				return dialer.DialContext(ctx, network, address)
			},
		},
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error().Msgf("kafka producer error: "+msg, args...)
		}),
	}, nil
}

// OrderPlacedEvent 結帳成功後發佈
type OrderPlacedEvent struct {
	EventType    string            `json:"event_type"`
	OrderID      string            `json:"order_id"`
	WholesalerID string            `json:"wholesaler_id"`
	RetailerID   string            `json:"retailer_id"`
	Items        []OrderPlacedItem `json:"items"`
	Total        decimal.Decimal   `json:"total"`
	TotalDisplay string            `json:"total_display"`
	CreatedAt    time.Time         `json:"created_at"`
}

type OrderPlacedItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

func NewOrderPlacedEvent(order *model.Order) OrderPlacedEvent {
	items := make([]OrderPlacedItem, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		items = append(items, OrderPlacedItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Color:     item.Color,
			Size:      item.Size,
			Quantity:  item.Quantity,
		})
	}
	return OrderPlacedEvent{
		EventType:    EventTypeOrderPlaced,
		OrderID:      order.ID,
		WholesalerID: order.WholesalerID,
		RetailerID:   order.RetailerID,
		Items:        items,
		Total:        order.Total,
		TotalDisplay: order.TotalDisplay,
		CreatedAt:    order.CreatedAt,
	}
}

type OrderProducer struct {
	writer        Writer
	retryAttempts int
	closed        atomic.Bool
}

func NewOrderProducer(writer Writer, retryAttempts int) *OrderProducer {
	if writer == nil {
		panic("order producer writer is nil")
	}
	if retryAttempts <= 0 {
		retryAttempts = defaultRetryAttempts
	}
	return &OrderProducer{writer: writer, retryAttempts: retryAttempts}
}

// PublishOrderPlaced key 為 wholesalerID，同一個 wholesaler 的訂單保持順序
func (p *OrderProducer) PublishOrderPlaced(ctx context.Context, order *model.Order) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	msg, err := p.convertToMessage(order)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < p.retryAttempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("publish order %s: %w", order.ID, ctx.Err())
		}
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		if !isTemporary(err) {
			break
		}
	}
	return fmt.Errorf("publish order %s: %w", order.ID, err)
}

func (p *OrderProducer) convertToMessage(order *model.Order) (kafka.Message, error) {
	value, err := json.Marshal(NewOrderPlacedEvent(order))
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(order.WholesalerID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeOrderPlaced)},
		},
	}, nil
}

func (p *OrderProducer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}

func isTemporary(err error) bool {
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	return false
}
