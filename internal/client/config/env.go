package config

import (
	"github.com/caarlos0/env/v11"
)

// parseEnv overlays Config with TASKKEEPER_* environment variables. Unset
// variables leave the field as is; malformed values panic.
func parseEnv(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}
}
