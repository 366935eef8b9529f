// Package config loads server configuration from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the auth server.
type Config struct {
	// Env selects the deployment mode: "development" or "production".
	// Production turns on Secure cookies and turns off TOTP diagnostics.
	Env string

	// BaseURL is the externally visible origin, used to build links in
	// outbound notifications (password reset).
	BaseURL string

	// DatabaseURL selects the postgres backend when set. Empty means the
	// embedded bbolt store under DataDir.
	DatabaseURL string

	// DataDir holds the embedded database when DatabaseURL is empty.
	DataDir string

	// RedisAddr selects the shared rate-limit store when set. Empty means
	// process-local counters.
	RedisAddr string

	// TOTPIssuer is the issuer name shown in authenticator apps.
	TOTPIssuer string

	// TrustedProxies lists CIDR ranges whose forwarding headers are
	// honored for client IP extraction. Empty means headers are ignored.
	TrustedProxies []netip.Prefix

	// AllowedOrigins lists origins permitted by CORS for the dashboard.
	AllowedOrigins []string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first if present; real environment
// variables win over file entries.
func Load() (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getenv("RAINIEN_ENV", "development"),
		BaseURL:        getenv("RAINIEN_BASE_URL", "http://localhost:8080"),
		DatabaseURL:    os.Getenv("RAINIEN_DATABASE_URL"),
		DataDir:        getenv("RAINIEN_DATA_DIR", "./data"),
		RedisAddr:      os.Getenv("RAINIEN_REDIS_ADDR"),
		TOTPIssuer:     getenv("RAINIEN_TOTP_ISSUER", "Rainien"),
		AllowedOrigins: splitList(os.Getenv("RAINIEN_ALLOWED_ORIGINS")),
	}

	proxies, err := ParseTrustedProxies(splitList(os.Getenv("RAINIEN_TRUSTED_PROXIES")))
	if err != nil {
		return nil, err
	}
	cfg.TrustedProxies = proxies

	if cfg.Env != "development" && cfg.Env != "production" {
		return nil, fmt.Errorf("invalid RAINIEN_ENV %q: want development or production", cfg.Env)
	}
	return cfg, nil
}

// Production reports whether the server runs with production hardening.
func (c *Config) Production() bool { return c.Env == "production" }

// ParseTrustedProxies parses CIDR ranges, accepting bare addresses as
// single-host prefixes.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, prefix)
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
