package logger

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestLoggerWritesToKafka(t *testing.T) {
	fw := &fakeWriter{}
	l := New(Options{ServiceName: "storefront", Level: "debug", Extra: []io.Writer{newKafkaWriter(fw)}})

	l.Info().Str("order_id", "o-1").Msg("order placed")
	l.Debug().Msg("debug line")

	require.Len(t, fw.msgs, 2)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &entry))
	require.Equal(t, "storefront", entry["service"])
	require.Equal(t, "o-1", entry["order_id"])
	require.Equal(t, "order placed", entry["message"])
	require.NotEqual(t, fw.msgs[0].Key, fw.msgs[1].Key)
}

func TestLoggerLevelFallback(t *testing.T) {
	fw := &fakeWriter{}
	l := New(Options{ServiceName: "storefront", Level: "nonsense", Extra: []io.Writer{newKafkaWriter(fw)}})

	l.Debug().Msg("hidden")
	l.Info().Msg("shown")
	require.Len(t, fw.msgs, 1)
}
