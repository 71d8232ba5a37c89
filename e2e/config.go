package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_ADDR points at a running relay, e.g. localhost:8090. The
	// suite skips entirely when it is unset.
	RelayAddr string `envconfig:"RELAY_ADDR"`
	// AUTH_SECRET must match the relay's token secret so the suite can
	// mint its own connection tokens.
	AuthSecret string `envconfig:"AUTH_SECRET"`
	// E2E_DEBUG_FRAMES dumps every frame sent and received
	DebugFrames bool `envconfig:"E2E_DEBUG_FRAMES" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
