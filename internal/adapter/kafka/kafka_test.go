package kafka

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aquaculture-suitability/internal/config"
	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

func testResult() domain.Result {
	return domain.Result{
		Species: domain.Species{
			Name:        "oyster",
			Temperature: domain.Range{Min: 11, Max: 30},
			Depth:       domain.Range{Min: 0, Max: 70},
		},
		Zonal: []domain.ZonalRow{
			{Region: "Central California", SuitableCells: 6, SuitableKm2: 6, PercentSuitable: 75, ReferenceAreaM2: 8e6},
			{Region: "Oregon", ReferenceAreaM2: 8e6},
		},
		ComputedAt: time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
	}
}

func TestSerializeToMessages(t *testing.T) {
	res := testResult()

	msgs, err := serializeToMessages(res)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, []byte("oyster|Central California"), msgs[0].Key)
	assert.Equal(t, []byte("oyster|Oregon"), msgs[1].Key)
	require.Len(t, msgs[0].Headers, 2)
	assert.Equal(t, "species", msgs[0].Headers[0].Key)
	assert.Equal(t, []byte("oyster"), msgs[0].Headers[0].Value)
	assert.Equal(t, "computed_at", msgs[0].Headers[1].Key)
	assert.Equal(t, []byte(res.ComputedAt.Format(time.RFC3339)), msgs[0].Headers[1].Value)

	var got RegionMessage
	require.NoError(t, json.Unmarshal(msgs[0].Value, &got))
	assert.Equal(t, "Central California", got.Region)
	assert.Equal(t, 75.0, got.PercentSuitable)
	assert.Equal(t, domain.Range{Min: 11, Max: 30}, got.Species.Temperature)
	assert.True(t, res.ComputedAt.Equal(got.ComputedAt))
	assert.Contains(t, string(msgs[1].Value), `"percent_suitable":0`)
}

func TestNewWriter(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers:   []string{"localhost:9092"},
		KafkaTopic:     "aquaculture-suitability",
		PublishTimeout: 5 * time.Second,
	}
	w := NewWriter(cfg, slog.Default())
	assert.Equal(t, "aquaculture-suitability", w.writer.Topic)
	assert.Equal(t, 5*time.Second, w.writer.WriteTimeout)
	assert.NoError(t, w.LoadResults(t.Context(), nil))
	assert.NoError(t, w.Close())
}
