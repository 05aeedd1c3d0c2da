// Package config loads service configuration from the process environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target's env-tagged fields from the environment. target
// must be a non-nil struct pointer.
func ParseEnv(target any) error {
	if target == nil {
		return fmt.Errorf("parse env: nil target")
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
