// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadConfigRequiresPort(t *testing.T) {
	t.Setenv("PORT", "")
	if _, err := LoadConfig(zerolog.Nop()); !errors.Is(err, ErrMissingPort) {
		t.Errorf("missing port: got %v, want ErrMissingPort", err)
	}
}

func TestLoadConfigParsesTokens(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("TOKEN_0", "avengers#xoxb-first")
	t.Setenv("TOKEN_1", "xmen#xoxb-second")
	t.Setenv("TOKEN_2", "")

	cfg, err := LoadConfig(zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port: got %q, want %q", cfg.Port, "8080")
	}
	if len(cfg.Tokens) != 2 {
		t.Fatalf("tokens: got %d, want 2", len(cfg.Tokens))
	}
	if cfg.Tokens["avengers"] != "xoxb-first" || cfg.Tokens["xmen"] != "xoxb-second" {
		t.Errorf("tokens: got %+v", cfg.Tokens)
	}
}

func TestLoadConfigSkipsMalformedToken(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("TOKEN_0", "no-delimiter")
	t.Setenv("TOKEN_1", "too#many#delimiters")
	t.Setenv("TOKEN_2", "avengers#xoxb-good")

	cfg, err := LoadConfig(zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Tokens) != 1 || cfg.Tokens["avengers"] != "xoxb-good" {
		t.Errorf("tokens: got %+v, want only the well-formed one", cfg.Tokens)
	}
}

func TestLoadConfigTokensStopAtGap(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("TOKEN_0", "avengers#xoxb-first")
	t.Setenv("TOKEN_2", "xmen#xoxb-orphan")

	cfg, err := LoadConfig(zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, ok := cfg.Tokens["xmen"]; ok {
		t.Error("token after a numbering gap was read")
	}
}

func TestLoadConfigDebugToggle(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("LOGGING", "verbose")

	cfg, err := LoadConfig(zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Debug {
		t.Error("LOGGING did not enable debug")
	}
}
