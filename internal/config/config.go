package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"exam-session-service/internal/engine"
	"exam-session-service/internal/scoring"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		TickInterval string `yaml:"tick_interval"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	QuestionSets struct {
		TTL string `yaml:"ttl"`
	} `yaml:"question_sets"`
	// Flows maps a flow name (mock, daily, ...) to its navigation policy.
	Flows   map[string]string `yaml:"flows"`
	Scoring Scoring           `yaml:"scoring"`
}

// Scoring overrides the default marking scheme. Nil fields keep the defaults.
type Scoring struct {
	Correct        *int     `yaml:"correct"`
	Incorrect      *int     `yaml:"incorrect"`
	NoPenaltyTypes []string `yaml:"no_penalty_types"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if _, err := cfg.Policies(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Policies parses the per-flow navigation policies.
func (c Config) Policies() (map[string]engine.Policy, error) {
	out := make(map[string]engine.Policy, len(c.Flows))
	for flow, raw := range c.Flows {
		p, err := engine.ParsePolicy(raw)
		if err != nil {
			return nil, fmt.Errorf("flow %q: %w", flow, err)
		}
		out[flow] = p
	}
	return out, nil
}

// Scheme builds the marking scheme, starting from the default one.
func (c Config) Scheme() scoring.Scheme {
	s := scoring.DefaultScheme()
	if c.Scoring.Correct != nil {
		s.CorrectMarks = *c.Scoring.Correct
	}
	if c.Scoring.Incorrect != nil {
		s.IncorrectMarks = *c.Scoring.Incorrect
	}
	if c.Scoring.NoPenaltyTypes != nil {
		s.PenaltyByType = make(map[string]int, len(c.Scoring.NoPenaltyTypes))
		for _, t := range c.Scoring.NoPenaltyTypes {
			s.PenaltyByType[strings.TrimSpace(t)] = 0
		}
	}
	return s
}
