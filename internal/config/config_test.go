package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		TargetURL:      "http://localhost:8080/query",
		Concurrency:    4,
		BaseIterations: 50,
		LoadScale:      2,
		EventLimit:     250,
		SeedWindow:     10,
	}
}

func TestDerivedFields(t *testing.T) {
	cfg := validConfig()
	if got := cfg.Iterations(); got != 100 {
		t.Fatalf("iterations: expected 100, got %d", got)
	}
	if got := cfg.TotalRequests(); got != 400 {
		t.Fatalf("total: expected 400, got %d", got)
	}
}

func TestClampedEventLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 25},
		{24, 25},
		{25, 25},
		{250, 250},
		{5000, 5000},
		{99999, 5000},
	}
	for _, tc := range tests {
		cfg := validConfig()
		cfg.EventLimit = tc.in
		if got := cfg.ClampedEventLimit(); got != tc.want {
			t.Fatalf("clamp(%d): expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing target", func(c *Config) { c.TargetURL = " " }, "target is required"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency must be >= 1"},
		{"zero iterations", func(c *Config) { c.BaseIterations = 0 }, "iterations must be >= 1"},
		{"zero load scale", func(c *Config) { c.LoadScale = 0 }, "load_scale must be >= 1"},
		{"zero seed window", func(c *Config) { c.SeedWindow = 0 }, "seed_window must be >= 1"},
		{"negative seed base", func(c *Config) { c.SeedBase = -1 }, "seed_base must be >= 0"},
		{"negative rate", func(c *Config) { c.Rate = -1 }, "rate must be >= 0"},
		{"bad tracing protocol", func(c *Config) { c.Tracing.Protocol = "udp" }, "not supported"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidationErrorIssues(t *testing.T) {
	cfg := validConfig()
	cfg.TargetURL = ""
	cfg.Concurrency = 0

	err := cfg.Validate()
	var vErr ValidationError
	if got, ok := err.(ValidationError); ok {
		vErr = got
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(vErr.Issues()) != 2 {
		t.Fatalf("expected 2 issues, got %v", vErr.Issues())
	}
}
