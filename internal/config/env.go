package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/preston-bernstein/gaffer-service/internal/timeutil"
)

// Duration wraps time.Duration for clearer type usage in Config.
type Duration = time.Duration

// Retention is a duration that also accepts whole days ("30d").
type Retention time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (r *Retention) UnmarshalText(text []byte) error {
	d, err := timeutil.ParseRetention(string(text))
	if err != nil {
		return fmt.Errorf("invalid retention %q: %w", text, err)
	}
	*r = Retention(d)
	return nil
}

// Duration returns r as a time.Duration.
func (r Retention) Duration() time.Duration {
	return time.Duration(r)
}

// ParseEnv loads tagged fields of target from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
