package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/aquaculture-suitability/internal/config"
	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

// RegionMessage is the JSON value of one published zonal result.
type RegionMessage struct {
	Species         domain.Species `json:"species"`
	Region          string         `json:"region"`
	SuitableCells   int            `json:"suitable_cells"`
	SuitableKm2     float64        `json:"suitable_km2"`
	PercentSuitable float64        `json:"percent_suitable"`
	ReferenceAreaM2 float64        `json:"reference_area_m2"`
	ComputedAt      time.Time      `json:"computed_at"`
}

// Writer produces zonal results to a Kafka topic.
// It implements pipeline.ResultLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured result topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           cfg.PublishTimeout,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadResults publishes one message per species and region in a single
// WriteMessages call.
func (w *Writer) LoadResults(ctx context.Context, results []domain.Result) error {
	var msgs []kafkago.Message
	for _, res := range results {
		batch, err := serializeToMessages(res)
		if err != nil {
			return err
		}
		msgs = append(msgs, batch...)
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish zonal results: %w", err)
	}
	w.logger.Info("zonal results published", "topic", w.writer.Topic, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessages marshals every zonal row of a result into a Kafka message
// keyed by "<species>|<region>".
func serializeToMessages(res domain.Result) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, len(res.Zonal))
	for i, row := range res.Zonal {
		data, err := json.Marshal(RegionMessage{
			Species:         res.Species,
			Region:          row.Region,
			SuitableCells:   row.SuitableCells,
			SuitableKm2:     row.SuitableKm2,
			PercentSuitable: row.PercentSuitable,
			ReferenceAreaM2: row.ReferenceAreaM2,
			ComputedAt:      res.ComputedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("serialize zonal result: %w", err)
		}
		msgs[i] = kafkago.Message{
			Key:   []byte(res.Species.Name + "|" + row.Region),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "species", Value: []byte(res.Species.Name)},
				{Key: "computed_at", Value: []byte(res.ComputedAt.Format(time.RFC3339))},
			},
		}
	}
	return msgs, nil
}
