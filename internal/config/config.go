package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

// Region sources.
const (
	RegionsShapefile = "shapefile"
	RegionsPostGIS   = "postgis"
)

// Config holds all job settings, populated from environment variables.
type Config struct {
	TemperatureFiles    []string
	TemperatureVariable string
	TemperatureKelvin   bool

	DepthFile      string
	DepthVariable  string
	DepthElevation bool // true when the raster stores elevation (negative below sea level)

	LatVariable string
	LonVariable string
	GridCRS     string

	RegionsSource     string
	RegionsFile       string
	RegionsNameField  string
	RegionsAreaField  string
	RegionsDSN        string
	RegionsTable      string
	RegionsGeomColumn string
	RegionsReproject  bool

	Species []domain.Species

	OutputDir   string
	RenderWidth int

	LogLevel  string
	LogFormat string

	// Optional publishers; empty disables them.
	KafkaBrokers   []string
	KafkaTopic     string
	PushgatewayURL string
	PublishTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	species, err := domain.ParseSpeciesList(sharedcfg.EnvOrDefault("SPECIES", domain.DefaultSpecies))
	if err != nil {
		return nil, fmt.Errorf("invalid SPECIES: %w", err)
	}

	tempUnits := strings.ToLower(sharedcfg.EnvOrDefault("TEMPERATURE_UNITS", "kelvin"))
	if tempUnits != "kelvin" && tempUnits != "celsius" {
		return nil, errors.New("TEMPERATURE_UNITS must be kelvin or celsius")
	}
	depthConvention := strings.ToLower(sharedcfg.EnvOrDefault("DEPTH_CONVENTION", "elevation"))
	if depthConvention != "elevation" && depthConvention != "depth" {
		return nil, errors.New("DEPTH_CONVENTION must be elevation or depth")
	}

	reproject, err := parseBool("REGIONS_REPROJECT", false)
	if err != nil {
		return nil, err
	}

	renderWidth, err := strconv.Atoi(sharedcfg.EnvOrDefault("RENDER_WIDTH", "800"))
	if err != nil || renderWidth < 64 || renderWidth > 8192 {
		return nil, errors.New("RENDER_WIDTH must be an integer between 64 and 8192")
	}

	publishTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("PUBLISH_TIMEOUT", "10s"))
	if err != nil || publishTimeout <= 0 {
		return nil, errors.New("invalid PUBLISH_TIMEOUT")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		TemperatureFiles:    splitList(os.Getenv("TEMPERATURE_FILES")),
		TemperatureVariable: sharedcfg.EnvOrDefault("TEMPERATURE_VARIABLE", "sst"),
		TemperatureKelvin:   tempUnits == "kelvin",

		DepthFile:      os.Getenv("DEPTH_FILE"),
		DepthVariable:  sharedcfg.EnvOrDefault("DEPTH_VARIABLE", "elevation"),
		DepthElevation: depthConvention == "elevation",

		LatVariable: sharedcfg.EnvOrDefault("LAT_VARIABLE", "lat"),
		LonVariable: sharedcfg.EnvOrDefault("LON_VARIABLE", "lon"),
		GridCRS:     sharedcfg.EnvOrDefault("GRID_CRS", "+proj=longlat +datum=WGS84 +no_defs"),

		RegionsSource:     strings.ToLower(sharedcfg.EnvOrDefault("REGIONS_SOURCE", RegionsShapefile)),
		RegionsFile:       os.Getenv("REGIONS_FILE"),
		RegionsNameField:  sharedcfg.EnvOrDefault("REGIONS_NAME_FIELD", "rgn"),
		RegionsAreaField:  sharedcfg.EnvOrDefault("REGIONS_AREA_FIELD", "area_m2"),
		RegionsDSN:        os.Getenv("REGIONS_DSN"),
		RegionsTable:      sharedcfg.EnvOrDefault("REGIONS_TABLE", "wc_regions"),
		RegionsGeomColumn: sharedcfg.EnvOrDefault("REGIONS_GEOM_COLUMN", "geom"),
		RegionsReproject:  reproject,

		Species: species,

		OutputDir:   sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		RenderWidth: renderWidth,

		LogLevel:  sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),

		KafkaBrokers:   brokers,
		KafkaTopic:     sharedcfg.EnvOrDefault("KAFKA_TOPIC", "aquaculture-suitability"),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		PublishTimeout: publishTimeout,
	}

	if len(cfg.TemperatureFiles) == 0 {
		return nil, errors.New("TEMPERATURE_FILES is required")
	}
	if cfg.DepthFile == "" {
		return nil, errors.New("DEPTH_FILE is required")
	}
	switch cfg.RegionsSource {
	case RegionsShapefile:
		if cfg.RegionsFile == "" {
			return nil, errors.New("REGIONS_FILE is required")
		}
	case RegionsPostGIS:
		if cfg.RegionsDSN == "" {
			return nil, errors.New("REGIONS_DSN is required")
		}
	default:
		return nil, errors.New("REGIONS_SOURCE must be shapefile or postgis")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether results are published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}
