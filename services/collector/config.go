package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the collector configuration file. Every scalar can be overridden from the
// environment.
type Config struct {
	Zabbix     ZabbixConfig      `yaml:"zabbix"`
	SNMP       SNMPConfig        `yaml:"snmp"`
	NATS       NATSConfig        `yaml:"nats"`
	Database   string            `yaml:"database" env:"DB_DSN, overwrite"`
	FailLog    string            `yaml:"fail_log" env:"FAIL_LOG, overwrite"`
	Vendors    map[string]string `yaml:"vendors"`
	Workers    int               `yaml:"workers" env:"COLLECTOR_WORKERS, overwrite"`
	AccessOnly bool              `yaml:"access_only" env:"ACCESS_ONLY, overwrite"`
	Interval   time.Duration     `yaml:"interval" env:"COLLECTOR_INTERVAL, overwrite"`
	LogLevel   string            `yaml:"log_level" env:"LOG_LEVEL, overwrite"`
	LogFormat  string            `yaml:"log_format" env:"LOG_FORMAT, overwrite"`
}

// ZabbixConfig locates the Zabbix JSON-RPC API and the host group to inventory.
type ZabbixConfig struct {
	URL     string `yaml:"url" env:"ZABBIX_URL, overwrite"`
	Token   string `yaml:"token" env:"ZABBIX_TOKEN, overwrite"`
	GroupID int    `yaml:"group_id" env:"ZABBIX_GROUP_ID, overwrite"`
	// BearerAuth sends the token as an Authorization header instead of the "auth"
	// request member, which newer Zabbix releases no longer accept.
	BearerAuth bool          `yaml:"bearer_auth" env:"ZABBIX_BEARER_AUTH, overwrite"`
	Timeout    time.Duration `yaml:"timeout" env:"ZABBIX_TIMEOUT, overwrite"`
}

// SNMPConfig controls the switch walks.
type SNMPConfig struct {
	Port    uint16        `yaml:"port" env:"SNMP_PORT, overwrite"`
	Timeout time.Duration `yaml:"timeout" env:"SNMP_TIMEOUT, overwrite"`
	Retries int           `yaml:"retries" env:"SNMP_RETRIES, overwrite"`
}

// NATSConfig enables collection events when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url" env:"NATS_URL, overwrite"`
	Stream  string `yaml:"stream" env:"NATS_STREAM, overwrite"`
	Subject string `yaml:"subject" env:"NATS_SUBJECT, overwrite"`
}

// DefaultConfig returns the settings used for anything the file leaves out.
func DefaultConfig() Config {
	return Config{
		Zabbix: ZabbixConfig{
			Timeout: 30 * time.Second,
		},
		SNMP: SNMPConfig{
			Port:    161,
			Timeout: 5 * time.Second,
			Retries: 1,
		},
		NATS: NATSConfig{
			Stream:  "MACFINDER",
			Subject: CollectedSubject,
		},
		Database:   "network_inventory.db",
		FailLog:    "fail.log",
		Vendors:    map[string]string{},
		Workers:    4,
		AccessOnly: true,
		LogLevel:   "info",
		LogFormat:  "console",
	}
}

// LoadConfig reads the YAML file at path (when non-empty) over the defaults and then
// applies environment overrides through lookuper. A nil lookuper reads the process
// environment.
func LoadConfig(ctx context.Context, path string, lookuper envconfig.Lookuper) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("apply environment: %w", err)
	}

	if cfg.Vendors == nil {
		cfg.Vendors = map[string]string{}
	}
	return cfg, nil
}

// Validate reports settings that would make a collection run fail.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Zabbix.URL) == "" {
		problems = append(problems, "zabbix.url is required")
	}
	if strings.TrimSpace(c.Zabbix.Token) == "" {
		problems = append(problems, "zabbix.token is required")
	}
	if strings.TrimSpace(c.Database) == "" {
		problems = append(problems, "database is required")
	}
	if c.Workers < 1 {
		problems = append(problems, "workers must be at least 1")
	}
	if c.Interval < 0 {
		problems = append(problems, "interval must not be negative")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
