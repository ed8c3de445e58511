package config

import (
	"fmt"
	"strings"

	"stakingcore/crypto"
)

var (
	MinAuthSecretLength = 32
)

// ValidateConfig rejects settings the node cannot start with.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("DataDir must be set")
	}
	if admin := strings.TrimSpace(cfg.Admin); admin != "" {
		if _, err := crypto.ParseAddress(admin); err != nil {
			return fmt.Errorf("Admin: %w", err)
		}
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if secret := cfg.Auth.HMACSecret; secret != "" && len(secret) < MinAuthSecretLength {
		return fmt.Errorf("auth.HMACSecret must be at least %d bytes", MinAuthSecretLength)
	}
	if strings.TrimSpace(cfg.Webhook.URL) != "" && cfg.Webhook.Secret == "" {
		return fmt.Errorf("webhook.Secret required when webhook.URL is set")
	}
	if cfg.Auth.ClockSkewSeconds < 0 {
		return fmt.Errorf("auth.ClockSkewSeconds must not be negative")
	}
	return nil
}

// AdminAddress parses the configured administrator. An empty value yields the
// zero address, which no caller can match.
func (c *Config) AdminAddress() (crypto.Address, error) {
	admin := strings.TrimSpace(c.Admin)
	if admin == "" {
		return crypto.Address{}, nil
	}
	return crypto.ParseAddress(admin)
}
