package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	mock_producer "github.com/RoyceAzure/lab/storefront/internal/infra/producer/mock"
	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestOrder() *model.Order {
	return &model.Order{
		ID:           "o-1",
		WholesalerID: "w-1",
		RetailerID:   "r-1",
		LineItems: []model.CartLineItem{
			{ProductID: "p-1", VariantID: "v-1", Color: "red", Size: "M", Quantity: 2},
		},
		Total:        decimal.RequireFromString("2027.125"),
		TotalDisplay: "₦2027.13",
	}
}

func TestPublishOrderPlaced(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writer := mock_producer.NewMockWriter(ctrl)
	var sent kafka.Message
	writer.EXPECT().
		WriteMessages(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, msgs ...kafka.Message) error {
			require.Len(t, msgs, 1)
			sent = msgs[0]
			return nil
		})

	p := NewOrderProducer(writer, 3)
	require.NoError(t, p.PublishOrderPlaced(context.Background(), newTestOrder()))

	require.Equal(t, "w-1", string(sent.Key))
	var evt OrderPlacedEvent
	require.NoError(t, json.Unmarshal(sent.Value, &evt))
	require.Equal(t, EventTypeOrderPlaced, evt.EventType)
	require.Equal(t, "o-1", evt.OrderID)
	require.Len(t, evt.Items, 1)
	require.Equal(t, 2, evt.Items[0].Quantity)
	require.True(t, evt.Total.Equal(decimal.RequireFromString("2027.125")))
}

func TestPublishOrderPlacedRetriesTemporary(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writer := mock_producer.NewMockWriter(ctrl)
	gomock.InOrder(
		writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(kafka.LeaderNotAvailable),
		writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(nil),
	)

	p := NewOrderProducer(writer, 3)
	require.NoError(t, p.PublishOrderPlaced(context.Background(), newTestOrder()))
}

func TestPublishOrderPlacedPermanentError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	errBoom := errors.New("boom")
	writer := mock_producer.NewMockWriter(ctrl)
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errBoom).Times(1)

	p := NewOrderProducer(writer, 3)
	err := p.PublishOrderPlaced(context.Background(), newTestOrder())
	require.ErrorIs(t, err, errBoom)
}

func TestClosedProducer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writer := mock_producer.NewMockWriter(ctrl)
	writer.EXPECT().Close().Return(nil).Times(1)

	p := NewOrderProducer(writer, 1)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.ErrorIs(t, p.PublishOrderPlaced(context.Background(), newTestOrder()), ErrProducerClosed)
}

func TestConfigValidate(t *testing.T) {
	require.Error(t, Config{Topic: "orders"}.Validate())
	require.Error(t, Config{Brokers: []string{"localhost:9092"}}.Validate())
	require.NoError(t, Config{Brokers: []string{"localhost:9092"}, Topic: "orders"}.Validate())
}
