// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Process exit codes for fatal configuration failures. Each missing
// requirement gets its own code so supervisors can tell them apart.
const (
	ExitMissingPort = 1
	ExitDatabase    = 4
)

// ErrMissingPort is returned when the listen port is not configured.
var ErrMissingPort = errors.New("environment is missing $PORT")

// Config holds the process configuration. Everything comes from the
// environment: one credential per connected workspace (TOKEN_0, TOKEN_1, ...
// as "domain#token") and one LINE_<workspace>_<channel> declaration per
// bridged channel, resolved lazily by Lines.
type Config struct {
	Port        string
	DatabaseURL string
	Debug       bool

	// Tokens maps a workspace domain to its bearer credential, in the
	// order the TOKEN_n variables were declared.
	Tokens map[string]string
}

// LoadConfig reads configuration from the environment. A missing port is
// fatal; missing or malformed credentials degrade (the process can still
// answer endpoint-verification handshakes), so they are logged, not
// returned as errors.
func LoadConfig(log zerolog.Logger) (*Config, error) {
	cfg := &Config{
		Port:        os.Getenv("PORT"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Debug:       os.Getenv("LOGGING") != "",
		Tokens:      make(map[string]string),
	}
	if cfg.Port == "" {
		return nil, ErrMissingPort
	}

	for index := 0; ; index++ {
		raw := os.Getenv("TOKEN_" + strconv.Itoa(index))
		if raw == "" {
			break
		}
		domain, token, ok := strings.Cut(raw, "#")
		if !ok || domain == "" || token == "" || strings.Contains(token, "#") {
			log.Warn().Int("index", index).Msg("Credential is not #-delimited, skipping")
			continue
		}
		cfg.Tokens[domain] = token
	}
	if len(cfg.Tokens) == 0 {
		log.Warn().Msg("Environment is missing $TOKEN_0 or it is not #-delimited")
		log.Warn().Msg("Only URL verification is supported in this configuration")
	}

	return cfg, nil
}
