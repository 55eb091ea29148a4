package policy

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/notfall/dispatch-engine/internal/models"
)

// Policy holds the tunable dispatch behavior: ranking weights, RL
// hyperparameters, SLA thresholds and notification retry. Loaded from
// YAML with defaults for anything omitted.
type Policy struct {
	Ranking       RankingPolicy      `yaml:"ranking"`
	RL            RLPolicy           `yaml:"rl"`
	SLA           SLAPolicy          `yaml:"sla"`
	Notifications NotificationPolicy `yaml:"notifications"`
}

// RankingPolicy configures the scoring engine
type RankingPolicy struct {
	// Weights apply to (distance, travel_time, dynamic_rate,
	// specialization, time_slot_match, rating).
	Weights []float64 `yaml:"weights"`
	Workers int       `yaml:"workers"`
}

// RLPolicy configures the Q-table adjuster
type RLPolicy struct {
	NumStates  int     `yaml:"num_states"`
	NumActions int     `yaml:"num_actions"`
	Alpha      float64 `yaml:"alpha"`
	Gamma      float64 `yaml:"gamma"`
	Epsilon    float64 `yaml:"epsilon"`
}

// SLAPolicy configures compliance monitoring
type SLAPolicy struct {
	ComplianceThreshold float64 `yaml:"compliance_threshold"`
	MonitorInterval     string  `yaml:"monitor_interval"`
}

// NotificationPolicy configures alert dispatch retry
type NotificationPolicy struct {
	Retries    int    `yaml:"retries"`
	RetryDelay string `yaml:"retry_delay"`
}

// Default returns the policy used when no file is configured
func Default() *Policy {
	return &Policy{
		Ranking: RankingPolicy{
			Weights: []float64{0.3, 0.2, 0.2, 0.1, 0.1, 0.1},
			Workers: 8,
		},
		RL: RLPolicy{
			NumStates:  2000,
			NumActions: 1,
			Alpha:      0.1,
			Gamma:      0.9,
			Epsilon:    0.2,
		},
		SLA: SLAPolicy{
			ComplianceThreshold: 0.8,
			MonitorInterval:     "5m",
		},
		Notifications: NotificationPolicy{
			Retries:    3,
			RetryDelay: "2s",
		},
	}
}

// LoadFromFile reads a policy file over the defaults
func LoadFromFile(path string) (*Policy, error) {
	slog.Info("loading dispatch policy", "file", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("policy validation failed: %w", err)
	}

	return p, nil
}

// Validate checks the policy for setup defects
func (p *Policy) Validate() error {
	if len(p.Ranking.Weights) != models.FeatureCount {
		return fmt.Errorf("ranking weights must have %d entries, got %d", models.FeatureCount, len(p.Ranking.Weights))
	}
	if p.Ranking.Workers <= 0 {
		return fmt.Errorf("ranking workers must be positive, got %d", p.Ranking.Workers)
	}
	if p.RL.NumStates <= 0 || p.RL.NumActions <= 0 {
		return fmt.Errorf("rl table dimensions must be positive, got %dx%d", p.RL.NumStates, p.RL.NumActions)
	}
	if p.RL.Epsilon < 0 || p.RL.Epsilon > 1 {
		return fmt.Errorf("rl epsilon must be within [0, 1], got %v", p.RL.Epsilon)
	}
	if p.SLA.ComplianceThreshold <= 0 || p.SLA.ComplianceThreshold > 1 {
		return fmt.Errorf("compliance threshold must be in (0, 1], got %v", p.SLA.ComplianceThreshold)
	}
	if _, err := time.ParseDuration(p.SLA.MonitorInterval); err != nil {
		return fmt.Errorf("invalid monitor interval: %w", err)
	}
	if p.Notifications.Retries <= 0 {
		return fmt.Errorf("notification retries must be positive, got %d", p.Notifications.Retries)
	}
	if _, err := time.ParseDuration(p.Notifications.RetryDelay); err != nil {
		return fmt.Errorf("invalid retry delay: %w", err)
	}
	return nil
}

// MonitorInterval returns the parsed SLA monitor interval
func (p *Policy) MonitorInterval() time.Duration {
	d, _ := time.ParseDuration(p.SLA.MonitorInterval)
	return d
}

// RetryDelay returns the parsed notification retry delay
func (p *Policy) RetryDelay() time.Duration {
	d, _ := time.ParseDuration(p.Notifications.RetryDelay)
	return d
}
