package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tapstand/kiosk/internal/domain"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Server   ServerConfig   `yaml:"server"`
	Kiosk    KioskConfig    `yaml:"kiosk"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// KioskConfig holds the ordering-flow knobs. Prices are decimal strings
// keyed by beverage kind and cup size.
type KioskConfig struct {
	MaxQuantity        int                       `yaml:"max_quantity"`
	RestrictedKinds    []domain.BeverageKind     `yaml:"restricted_kinds"`
	Prices             map[string]map[int]string `yaml:"prices"`
	PollIntervalSecs   int                       `yaml:"poll_interval_seconds"`
	PollErrBackoffSecs int                       `yaml:"poll_error_backoff_seconds"`
	PollMaxChecks      int                       `yaml:"poll_max_checks"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when a field is absent from the
// file.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "kiosk", Database: "kiosk"},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672, User: "guest", Password: "guest"},
		Server:   ServerConfig{BaseURL: "http://localhost:3000"},
		Kiosk: KioskConfig{
			MaxQuantity:        10,
			RestrictedKinds:    []domain.BeverageKind{domain.BeverageBeer},
			PollIntervalSecs:   1,
			PollErrBackoffSecs: 2,
			PollMaxChecks:      30,
		},
	}
}

func (c *Config) validate() error {
	if c.Kiosk.MaxQuantity < 1 {
		return fmt.Errorf("kiosk.max_quantity must be at least 1")
	}
	if c.Kiosk.PollMaxChecks < 1 {
		return fmt.Errorf("kiosk.poll_max_checks must be at least 1")
	}
	for kind, sizes := range c.Kiosk.Prices {
		if !domain.KnownBeverage(domain.BeverageKind(kind)) {
			return fmt.Errorf("kiosk.prices: unknown beverage kind %q", kind)
		}
		for size, price := range sizes {
			if !domain.ValidSize(size) {
				return fmt.Errorf("kiosk.prices.%s: invalid size %d", kind, size)
			}
			if _, err := decimal.NewFromString(price); err != nil {
				return fmt.Errorf("kiosk.prices.%s.%d: invalid amount %q", kind, size, price)
			}
		}
	}
	return nil
}

// PriceTable builds the effective price table, the defaults overlaid with
// any configured overrides.
func (c *Config) PriceTable() domain.PriceTable {
	table := domain.DefaultPriceTable()
	for kind, sizes := range c.Kiosk.Prices {
		for size, price := range sizes {
			table[domain.BeverageKind(kind)][size] = decimal.RequireFromString(price)
		}
	}
	return table
}

// RestrictedSet returns the restricted kinds as a lookup set.
func (c *Config) RestrictedSet() map[domain.BeverageKind]bool {
	set := make(map[domain.BeverageKind]bool, len(c.Kiosk.RestrictedKinds))
	for _, kind := range c.Kiosk.RestrictedKinds {
		set[kind] = true
	}
	return set
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Kiosk.PollIntervalSecs) * time.Second
}

func (c *Config) PollErrBackoff() time.Duration {
	return time.Duration(c.Kiosk.PollErrBackoffSecs) * time.Second
}
