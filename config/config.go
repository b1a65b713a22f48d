package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/jinzhu/configor"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port     int    `default:"8080"`
	LogLevel string `default:"info"`

	Match struct {
		TokenSecret     string `default:"local-dev-secret"`
		TokenTTLSeconds int    `default:"300"`
	}

	Host GameHost
}

// Load builds the configuration from defaults, an optional config file named
// by MATCHMAKER_CONFIG, and MATCHMAKER_* environment overrides.
func Load() (*Config, error) {
	cfg := &Config{}

	var files []string
	if path := os.Getenv("MATCHMAKER_CONFIG"); path != "" {
		files = append(files, path)
	}

	loader := configor.New(&configor.Config{ENVPrefix: "MATCHMAKER"})
	if err := loader.Load(cfg, files...); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	if cfg.Match.TokenSecret == "local-dev-secret" {
		log.Warn().Msg("config: using the default token secret; set MATCHMAKER_MATCH_TOKENSECRET in production")
	}
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.Port))
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Match.TokenTTLSeconds) * time.Second
}

// Redacted returns a view safe for logging
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"port":               c.Port,
		"logLevel":           c.LogLevel,
		"tokenSecretSet":     c.Match.TokenSecret != "",
		"tokenTTLSeconds":    c.Match.TokenTTLSeconds,
		"hostAddress":        c.Host.Address,
		"hostInternal":       c.Host.InternalAddress,
		"hostPreferInternal": c.Host.PreferInternal,
		"hostPort":           c.Host.Port,
	}
}
