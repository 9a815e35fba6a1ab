package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// EventLimitFloor and EventLimitCeiling bound the per-request event limit.
	// Values outside the range are clamped, not rejected.
	EventLimitFloor   = 25
	EventLimitCeiling = 5000

	DefaultTarget         = "http://localhost:8080/query"
	DefaultConcurrency    = 10
	DefaultBaseIterations = 100
	DefaultLoadScale      = 1
	DefaultEventLimit     = 250
	DefaultSeedWindow     = 10
	DefaultTimeout        = 30 * time.Second
)

// Config holds the immutable run configuration. It is computed once at
// startup; derived values are fixed functions of the raw inputs.
type Config struct {
	TargetURL      string        `mapstructure:"target"`
	Concurrency    int           `mapstructure:"concurrency"`
	BaseIterations int           `mapstructure:"iterations"`
	MetricsURL     string        `mapstructure:"metrics_url"`
	LoadScale      int           `mapstructure:"load_scale"`
	EventLimit     int           `mapstructure:"event_limit"`
	SeedBase       int           `mapstructure:"seed_base"`
	SeedWindow     int           `mapstructure:"seed_window"`
	Rate           int           `mapstructure:"rate"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ResultFile     string        `mapstructure:"result_file"`
	LogLevel       string        `mapstructure:"log_level"`
	Tracing        TracingConfig `mapstructure:"tracing"`
}

// TracingConfig configures the optional OTLP trace exporter.
type TracingConfig struct {
	Endpoint    string `mapstructure:"otlp_endpoint"`
	Protocol    string `mapstructure:"otlp_protocol"` // "http" or "grpc"
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"otlp_insecure"`
}

// Enabled reports whether a trace exporter should be initialized.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// Iterations is the per-worker iteration count after load scaling.
func (c Config) Iterations() int {
	return c.BaseIterations * c.LoadScale
}

// TotalRequests is the number of primary requests the run will issue.
func (c Config) TotalRequests() int {
	return c.Concurrency * c.Iterations()
}

// ClampedEventLimit returns the event limit forced into the allowed range.
func (c Config) ClampedEventLimit() int {
	limit := c.EventLimit
	if limit < EventLimitFloor {
		limit = EventLimitFloor
	}
	if limit > EventLimitCeiling {
		limit = EventLimitCeiling
	}
	return limit
}

// ValidationError aggregates configuration issues.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target is required")
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.BaseIterations < 1 {
		issues = append(issues, "iterations must be >= 1")
	}
	if c.LoadScale < 1 {
		issues = append(issues, "load_scale must be >= 1")
	}
	if c.SeedWindow < 1 {
		issues = append(issues, "seed_window must be >= 1")
	}
	if c.SeedBase < 0 {
		issues = append(issues, "seed_base must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Tracing.Protocol)) {
	case "", "http", "grpc":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol %q is not supported", c.Tracing.Protocol))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
