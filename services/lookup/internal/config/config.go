package config

import (
	"context"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the lookup service.
type Config struct {
	Addr           string        `env:"ADDR,default=:5000"`
	DBDSN          string        `env:"DB_DSN,default=network_inventory.db"`
	ExcludedPorts  []string      `env:"EXCLUDED_PORTS,default=Po,Port-Channel,lag"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
	LogFormat      string        `env:"LOG_FORMAT,default=json"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=60s"`
	QueryTimeout   time.Duration `env:"QUERY_TIMEOUT,default=5s"`
	PageTitle      string        `env:"PAGE_TITLE,default=MAC Address Search"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith resolves configuration through the given lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}

	cfg.ExcludedPorts = clean(cfg.ExcludedPorts)
	cfg.AllowedOrigins = clean(cfg.AllowedOrigins)
	return cfg, nil
}

// clean trims entries and drops empty ones. The result is never nil; an empty list
// means no exclusions downstream.
func clean(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
