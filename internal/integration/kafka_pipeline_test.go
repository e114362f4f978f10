//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/geom"
	goshp "github.com/jonas-p/go-shp"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/kafka"
	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/netcdf"
	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/shapefile"
	"github.com/couchcryptid/aquaculture-suitability/internal/config"
	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
	"github.com/couchcryptid/aquaculture-suitability/internal/observability"
	"github.com/couchcryptid/aquaculture-suitability/internal/pipeline"
)

const (
	testTopic = "test-suitability"
	testCRS   = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"
)

// publishedMessage holds a deserialized message read from the result topic.
type publishedMessage struct {
	Region  kafka.RegionMessage
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from result topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var region kafka.RegionMessage
	require.NoError(t, json.Unmarshal(msg.Value, &region), "unmarshal result message")
	return publishedMessage{Region: region, Key: string(msg.Key), Headers: headers}
}

func rect(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{{X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: x1, Y: y0}, {X: x0, Y: y0}}}
}

// writeInputs writes two years of a 4x2 grid of 1 km cells whose columns hold
// 5, 15, 25 and 33 °C, a 2 km elevation grid of -10 m (west) and -50 m
// (east), and two regions splitting the grid in half.
func writeInputs(t *testing.T, dir string, store *netcdf.Store) pipeline.InputOptions {
	t.Helper()
	def := domain.GridDef{Dx: 1000, Dy: 1000, Nx: 4, Ny: 2, CRS: testCRS}
	var files []string
	for year, offset := range []float64{-1, 1} {
		g := domain.NewGrid(def)
		for j := 0; j < def.Ny; j++ {
			for i, c := range []float64{5, 15, 25, 33} {
				g.Set(c+273.15+offset, j, i)
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("sst_%d.nc", 2008+year))
		require.NoError(t, store.WriteGrid(path, "sst", "K", g))
		files = append(files, path)
	}

	elev := domain.NewGrid(domain.GridDef{Dx: 2000, Dy: 2000, Nx: 2, Ny: 1, CRS: testCRS})
	elev.Set(-10, 0, 0)
	elev.Set(-50, 0, 1)
	depthPath := filepath.Join(dir, "depth.nc")
	require.NoError(t, store.WriteGrid(depthPath, "elevation", "m", elev))

	require.NoError(t, shapefile.WritePolygons(filepath.Join(dir, "regions.shp"), testCRS,
		[]goshp.Field{goshp.StringField(shapefile.FieldRegion, 40), goshp.StringField(shapefile.FieldArea, 24)},
		[]geom.Polygonal{rect(0, 0, 2000, 2000), rect(2000, 0, 4000, 2000)},
		[][]any{{"West", "4000000"}, {"East", "4000000"}},
	))

	return pipeline.InputOptions{
		TemperatureFiles:    files,
		TemperatureVariable: "sst",
		TemperatureKelvin:   true,
		DepthFile:           depthPath,
		DepthVariable:       "elevation",
		DepthElevation:      true,
	}
}

// TestPipelinePublishesZonalResults runs the pipeline over NetCDF and
// shapefile inputs and verifies every species and region reaches Kafka.
func TestPipelinePublishesZonalResults(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	dir := t.TempDir()
	store := netcdf.NewStore("lat", "lon", testCRS)
	opts := writeInputs(t, dir, store)
	regions := shapefile.NewRegionReader(filepath.Join(dir, "regions.shp"), shapefile.FieldRegion, shapefile.FieldArea, discardLogger())
	source := pipeline.NewInputs(store, regions, opts, discardLogger())

	species, err := domain.ParseSpeciesList(domain.DefaultSpecies)
	require.NoError(t, err)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaTopic:     testTopic,
		PublishTimeout: 10 * time.Second,
	}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(source, species, discardLogger(), metrics, writer)
	results, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := map[string]publishedMessage{}
	for len(got) < 4 {
		pm := readPublished(ctx, t, consumer)
		got[pm.Key] = pm
	}

	want := map[string]float64{
		"oyster|West":      50,
		"oyster|East":      50,
		"common carp|West": 100,
		"common carp|East": 0,
	}
	for key, pct := range want {
		pm, ok := got[key]
		require.True(t, ok, "missing message %s", key)
		assert.InDelta(t, pct, pm.Region.PercentSuitable, 1e-9, key)
		assert.Equal(t, 4e6, pm.Region.ReferenceAreaM2, key)
		assert.Equal(t, pm.Region.Species.Name, pm.Headers["species"])
		_, err := time.Parse(time.RFC3339, pm.Headers["computed_at"])
		assert.NoError(t, err, "computed_at should be valid RFC3339")
	}
	assert.Equal(t, 2, got["oyster|East"].Region.SuitableCells)
	assert.InDelta(t, 4.0, got["common carp|West"].Region.SuitableKm2, 1e-9)
}

// TestPipelineInvariantFailurePublishesNothing checks that a failed
// precondition stops the run before anything is published.
func TestPipelineInvariantFailurePublishesNothing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	dir := t.TempDir()
	store := netcdf.NewStore("lat", "lon", testCRS)
	opts := writeInputs(t, dir, store)

	// Regions without a .prj have no spatial reference.
	noPrj := filepath.Join(dir, "noprj.shp")
	require.NoError(t, shapefile.WritePolygons(noPrj, "",
		[]goshp.Field{goshp.StringField(shapefile.FieldRegion, 40), goshp.StringField(shapefile.FieldArea, 24)},
		[]geom.Polygonal{rect(0, 0, 4000, 2000)},
		[][]any{{"All", "8000000"}},
	))
	regions := shapefile.NewRegionReader(noPrj, shapefile.FieldRegion, shapefile.FieldArea, discardLogger())

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic, PublishTimeout: 10 * time.Second}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	species, err := domain.ParseSpeciesList(domain.DefaultSpecies)
	require.NoError(t, err)
	p := pipeline.New(pipeline.NewInputs(store, regions, opts, discardLogger()), species,
		discardLogger(), observability.NewMetricsForTesting(), writer)
	_, err = p.Run(ctx)
	require.ErrorIs(t, err, domain.ErrCRSMismatch)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no message on the result topic")
}
