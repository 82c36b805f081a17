package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// HUB_ADDR is the host:port of a running hub, scenarios are skipped without it
	HubAddr    string `envconfig:"HUB_ADDR"`
	HealthAddr string `envconfig:"HEALTH_ADDR"`
	// Must match the secret of the hub to mint test tokens
	JWTSecret string `envconfig:"JWT_SECRET"`
	// E2E_DEBUG_JSON dumps every received frame
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
