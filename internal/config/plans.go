package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Plan defines the limits attached to a billing plan. Tenants reference a
// plan by name in their quota record.
type Plan struct {
	DailyRequests       int64         `yaml:"daily_requests"`
	DailyBandwidthBytes int64         `yaml:"daily_bandwidth_bytes"`
	WindowRequests      int           `yaml:"window_requests"`
	Window              time.Duration `yaml:"-"`
}

// UnmarshalYAML decodes a plan, accepting "10s" style window values.
func (p *Plan) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		DailyRequests       int64  `yaml:"daily_requests"`
		DailyBandwidthBytes int64  `yaml:"daily_bandwidth_bytes"`
		WindowRequests      int    `yaml:"window_requests"`
		Window              string `yaml:"window"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	p.DailyRequests = raw.DailyRequests
	p.DailyBandwidthBytes = raw.DailyBandwidthBytes
	p.WindowRequests = raw.WindowRequests
	if raw.Window != "" {
		d, err := time.ParseDuration(raw.Window)
		if err != nil {
			return fmt.Errorf("invalid window %q: %w", raw.Window, err)
		}
		p.Window = d
	}
	return nil
}

// Plans maps plan names to their limits.
type Plans map[string]Plan

// DefaultPlans is used when no plans file is configured.
func DefaultPlans() Plans {
	return Plans{
		"free": {
			DailyRequests:       10_000,
			DailyBandwidthBytes: 100 << 20, // 100 MiB
			WindowRequests:      30,
			Window:              10 * time.Second,
		},
		"pro": {
			DailyRequests:       1_000_000,
			DailyBandwidthBytes: 10 << 30, // 10 GiB
			WindowRequests:      300,
			Window:              10 * time.Second,
		},
	}
}

// LoadPlans reads plan definitions from a YAML file. An empty path returns
// the defaults.
func LoadPlans(path string) (Plans, error) {
	if path == "" {
		return DefaultPlans(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("read plans file %s: %w", path, err)
	}
	var plans Plans
	if err := yaml.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("parse plans file %s: %w", path, err)
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("plans file %s defines no plans", path)
	}
	for name, p := range plans {
		if p.DailyRequests <= 0 || p.DailyBandwidthBytes <= 0 {
			return nil, fmt.Errorf("plan %q: daily_requests and daily_bandwidth_bytes must be positive", name)
		}
		if p.WindowRequests <= 0 || p.Window <= 0 {
			return nil, fmt.Errorf("plan %q: window_requests and window must be positive", name)
		}
	}
	return plans, nil
}

// Resolve returns the named plan, falling back to "free" for unknown names.
func (p Plans) Resolve(name string) Plan {
	if plan, ok := p[name]; ok {
		return plan
	}
	return p["free"]
}
