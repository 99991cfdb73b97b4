package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the environment-driven settings shared by the client
// session and the dev server.
type Config struct {
	// ServerURL is the websocket endpoint the session dials.
	ServerURL string `env:"CAMPAIGN_WS_URL" envDefault:"ws://localhost:8080/ws"`

	// ReconnectDelay is the fixed wait before re-dialing after a drop.
	// Kept constant rather than exponential; configurable on purpose.
	ReconnectDelay time.Duration `env:"CAMPAIGN_RECONNECT_DELAY" envDefault:"2s"`

	// WriteTimeout caps a single frame write.
	WriteTimeout time.Duration `env:"CAMPAIGN_WRITE_TIMEOUT" envDefault:"3s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Port is the dev server listen port.
	Port string `env:"PORT" envDefault:"8080"`
}

// Load reads .env if present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env file is fine

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
