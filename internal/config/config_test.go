package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tapstand/kiosk/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  port: 5433
kiosk:
  max_quantity: 5
  restricted_kinds: [beer, birel]
  poll_interval_seconds: 3
  prices:
    kofola:
      300: "1.50"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5433 {
		t.Errorf("database = %+v", cfg.Database)
	}
	// Absent fields keep their defaults.
	if cfg.Database.User != "kiosk" {
		t.Errorf("database.user = %q, want default", cfg.Database.User)
	}
	if cfg.Kiosk.MaxQuantity != 5 {
		t.Errorf("max_quantity = %d", cfg.Kiosk.MaxQuantity)
	}
	if cfg.PollInterval() != 3*time.Second {
		t.Errorf("poll interval = %v", cfg.PollInterval())
	}
	if cfg.Kiosk.PollMaxChecks != 30 {
		t.Errorf("poll_max_checks = %d, want default", cfg.Kiosk.PollMaxChecks)
	}

	restricted := cfg.RestrictedSet()
	if !restricted[domain.BeverageBeer] || !restricted[domain.BeverageBirel] || restricted[domain.BeverageKofola] {
		t.Errorf("restricted set = %v", restricted)
	}

	table := cfg.PriceTable()
	price, err := table.UnitPrice(domain.BeverageKofola, 300)
	if err != nil {
		t.Fatal(err)
	}
	if got := domain.FormatAmount(price); got != "1.50" {
		t.Errorf("overridden kofola price = %s, want 1.50", got)
	}
	// Sizes without an override keep the shipped price.
	price, err = table.UnitPrice(domain.BeverageBeer, 500)
	if err != nil {
		t.Fatal(err)
	}
	if got := domain.FormatAmount(price); got != "3.00" {
		t.Errorf("default beer price = %s, want 3.00", got)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "zeroMaxQuantity", content: "kiosk:\n  max_quantity: 0\n"},
		{name: "unknownPriceKind", content: "kiosk:\n  prices:\n    wine:\n      300: \"4.00\"\n"},
		{name: "badPriceSize", content: "kiosk:\n  prices:\n    beer:\n      250: \"2.00\"\n"},
		{name: "unparseableAmount", content: "kiosk:\n  prices:\n    beer:\n      300: \"two euro\"\n"},
		{name: "notYaml", content: "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
