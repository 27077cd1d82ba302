package brokerlink

import (
	"testing"
	"time"
)

// TestConfig_Validate tests transport configuration validation.
func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		c := &Config{
			BootstrapServers: []string{"localhost:9092"},
			Topic:            "events",
			Partition:        0,
		}
		c.SetDefaults()
		return c
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "no brokers", mutate: func(c *Config) { c.BootstrapServers = nil }, wantError: true},
		{name: "empty topic", mutate: func(c *Config) { c.Topic = "" }, wantError: true},
		{name: "negative partition", mutate: func(c *Config) { c.Partition = -1 }, wantError: true},
		{name: "bad offset reset", mutate: func(c *Config) { c.AutoOffsetReset = "earliest" }, wantError: true},
		{name: "sasl without username", mutate: func(c *Config) { c.SASLEnable = true }, wantError: true},
		{name: "sasl with username", mutate: func(c *Config) { c.SASLEnable = true; c.SASLUsername = "svc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError && err == nil {
				t.Errorf("Expected error for %s, got nil", tt.name)
			}
			if !tt.wantError && err != nil {
				t.Errorf("Expected no error for %s, got %v", tt.name, err)
			}
		})
	}
}

// TestConfig_SetDefaults tests default population.
func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{
		BootstrapServers: []string{"localhost:9092"},
		Topic:            "events",
	}
	cfg.SetDefaults()

	if cfg.ClientID != "streamguard" {
		t.Errorf("Expected default client ID, got %q", cfg.ClientID)
	}
	if cfg.AutoOffsetReset != OffsetResetOldest {
		t.Errorf("Expected oldest offset reset, got %q", cfg.AutoOffsetReset)
	}
	if cfg.FetchBackoffInitial != 250*time.Millisecond {
		t.Errorf("Expected 250ms initial backoff, got %s", cfg.FetchBackoffInitial)
	}
	if cfg.FetchBackoffMax != 10*time.Second {
		t.Errorf("Expected 10s max backoff, got %s", cfg.FetchBackoffMax)
	}

	// Explicit values survive.
	cfg2 := &Config{
		BootstrapServers:    []string{"localhost:9092"},
		Topic:               "events",
		ClientID:            "custom",
		FetchBackoffInitial: time.Second,
	}
	cfg2.SetDefaults()
	if cfg2.ClientID != "custom" {
		t.Errorf("Expected custom client ID to survive, got %q", cfg2.ClientID)
	}
	if cfg2.FetchBackoffInitial != time.Second {
		t.Errorf("Expected explicit backoff to survive, got %s", cfg2.FetchBackoffInitial)
	}
}
