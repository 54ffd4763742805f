package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes one message per station of each snapshot.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the snapshot topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Publish serializes every station of the snapshot and writes them in a
// single WriteMessages call. Messages are keyed by station id so a station's
// history stays on one partition.
func (w *Writer) Publish(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Stations) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snap.Stations))
	for i := range snap.Stations {
		msg, err := serializeToMessage(snap.Stations[i], snap.GeneratedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write station snapshots: %w", err)
	}
	w.logger.Debug("station snapshots published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StationSnapshot into a Kafka message.
func serializeToMessage(st domain.StationSnapshot, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(st.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "station_id", Value: []byte(st.ID)},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
			{Key: "status", Value: []byte(st.Status)},
		},
	}, nil
}
