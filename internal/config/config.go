package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Upstream wcota/covid19br feeds.
const (
	DefaultStatesURL = "https://raw.githubusercontent.com/wcota/covid19br/master/cases-brazil-states.csv"
	DefaultCitiesURL = "https://raw.githubusercontent.com/wcota/covid19br/master/cases-brazil-cities-time.csv"
)

// Reference populations, IBGE 2019 estimates.
const (
	DefaultBrazilPopulation  = 210147125
	DefaultRJStatePopulation = 17264943
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	StatesURL    string
	CitiesURL    string
	DataPath     string
	MinConfirmed int64
	FetchTimeout time.Duration

	BrazilPopulation  float64
	RJStatePopulation float64

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional sinks; empty disables them.
	KafkaBrokers   []string
	KafkaTopic     string
	SQLitePath     string
	PushgatewayURL string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "60s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	minConfirmed, err := strconv.ParseInt(sharedcfg.EnvOrDefault("MIN_CONFIRMED", "5"), 10, 64)
	if err != nil || minConfirmed < 0 {
		return nil, errors.New("invalid MIN_CONFIRMED")
	}

	brazilPop, err := parsePopulation("BRAZIL_POPULATION", DefaultBrazilPopulation)
	if err != nil {
		return nil, err
	}
	rjPop, err := parsePopulation("RJ_STATE_POPULATION", DefaultRJStatePopulation)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		StatesURL:    sharedcfg.EnvOrDefault("STATES_URL", DefaultStatesURL),
		CitiesURL:    sharedcfg.EnvOrDefault("CITIES_URL", DefaultCitiesURL),
		DataPath:     sharedcfg.EnvOrDefault("DATA_PATH", "data"),
		MinConfirmed: minConfirmed,
		FetchTimeout: fetchTimeout,

		BrazilPopulation:  brazilPop,
		RJStatePopulation: rjPop,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:   brokers,
		KafkaTopic:     sharedcfg.EnvOrDefault("KAFKA_TOPIC", "covid-br-daily"),
		SQLitePath:     os.Getenv("SQLITE_PATH"),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
	}

	if cfg.StatesURL == "" {
		return nil, errors.New("STATES_URL is required")
	}
	if cfg.CitiesURL == "" {
		return nil, errors.New("CITIES_URL is required")
	}
	if cfg.DataPath == "" {
		return nil, errors.New("DATA_PATH is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

// KafkaEnabled reports whether persisted rows are also published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Population returns the reference population for a state code, or for the
// whole country when state is "TOTAL". ok is false when none is configured.
func (c *Config) Population(state string) (float64, bool) {
	switch state {
	case "TOTAL":
		return c.BrazilPopulation, c.BrazilPopulation > 0
	case "RJ":
		return c.RJStatePopulation, c.RJStatePopulation > 0
	default:
		return 0, false
	}
}

func parsePopulation(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}
