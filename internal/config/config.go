// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

// Package config loads ambient configuration for the cmd/ tools only; the
// core restoretree packages never read the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the handful of settings the demo/fixture command-line tools
// accept, loaded from the process environment (optionally seeded by a
// .env file during local development).
type Config struct {
	FixturePath string
	WorkDir     string
	CaseFold    bool
	LogLevel    string
}

// Load reads a .env file if present (ignored if absent, which is the
// normal case outside local development) and then overlays real
// environment variables; dotenv files are optional local overrides, never
// a required input.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	cfg := Config{
		FixturePath: getenv("RESTORETREE_FIXTURE", ""),
		WorkDir:     getenv("RESTORETREE_WORKDIR", "."),
		LogLevel:    getenv("RESTORETREE_LOG_LEVEL", "info"),
	}
	if v := os.Getenv("RESTORETREE_CASEFOLD"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, err
		}
		cfg.CaseFold = b
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
