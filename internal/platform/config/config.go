// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, token service) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Riyamaga identity API.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"4000"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`
	LogFormat   string `env:"LOG_FORMAT"   envDefault:"json"`

	// Relational Database (PostgreSQL)
	DatabaseURL       string `env:"DATABASE_URL,required"`
	DatabaseMaxConns  int32  `env:"DATABASE_MAX_CONNS"  envDefault:"10"`
	MigrationsEnabled bool   `env:"MIGRATIONS_ENABLED"  envDefault:"true"`

	// Key-Value Cache (Redis). Optional: the OTP limiter falls back to memory.
	RedisURL string `env:"REDIS_URL"`

	// Token signing
	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET,required"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET,required"`
	JWTAccessTTL     int    `env:"JWT_ACCESS_TTL_SECONDS"   envDefault:"900"`
	JWTRefreshTTL    int    `env:"JWT_REFRESH_TTL_SECONDS"  envDefault:"2592000"`
	JWTIssuer        string `env:"JWT_ISSUER"               envDefault:"riyamaga.api"`
	JWTRotateRefresh bool   `env:"JWT_REFRESH_ROTATION"     envDefault:"true"`

	// One-time passwords
	OTPTTL           int    `env:"OTP_TTL_SECONDS"       envDefault:"300"`
	OTPCooldown      int    `env:"OTP_COOLDOWN_SECONDS"  envDefault:"30"`
	OTPDevFixed      string `env:"OTP_DEV_FIXED"`
	OTPHashKey       string `env:"OTP_HASH_KEY"`
	OTPGenericErrors bool   `env:"OTP_GENERIC_ERRORS"    envDefault:"false"`

	// OTP endpoint throttling, per client IP
	OTPRateLimit  int `env:"OTP_RATE_LIMIT"           envDefault:"10"`
	OTPRateWindow int `env:"OTP_RATE_WINDOW_SECONDS"  envDefault:"60"`

	// Reverse proxies (IPs or CIDRs) allowed to set X-Real-IP / X-Forwarded-For.
	// Empty means the socket peer is always the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Cross-Origin Resource Sharing
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	// Security event stream (Kafka). Empty brokers log events instead.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"   envDefault:"auth.security-events"`

	// SMS delivery (Twilio). Empty credentials log deliveries instead.
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `env:"TWILIO_FROM_NUMBER"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required"))
	} else if c.JWTAccessSecret == c.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		errs = append(errs, errors.New("token ttls must be positive"))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL_SECONDS must be positive"))
	}
	if c.OTPCooldown < 0 {
		errs = append(errs, errors.New("OTP_COOLDOWN_SECONDS must not be negative"))
	}
	if c.OTPRateLimit <= 0 || c.OTPRateWindow <= 0 {
		errs = append(errs, errors.New("OTP rate limit and window must be positive"))
	}
	if c.DatabaseMaxConns <= 0 {
		errs = append(errs, errors.New("DATABASE_MAX_CONNS must be positive"))
	}

	if c.OTPDevFixed != "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("OTP_DEV_FIXED is not allowed in production"))
		}
		if strings.Trim(c.OTPDevFixed, "0123456789") != "" {
			errs = append(errs, errors.New("OTP_DEV_FIXED must be numeric"))
		}
	}

	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AccessTTL returns the access token lifetime.
func (c *Config) AccessTTL() time.Duration { return seconds(c.JWTAccessTTL) }

// RefreshTTL returns the refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration { return seconds(c.JWTRefreshTTL) }

// OTPTTLDuration returns how long an issued code stays valid.
func (c *Config) OTPTTLDuration() time.Duration { return seconds(c.OTPTTL) }

// OTPCooldownDuration returns the minimum gap between issuances for a phone.
func (c *Config) OTPCooldownDuration() time.Duration { return seconds(c.OTPCooldown) }

// OTPRateWindowDuration returns the OTP throttling window.
func (c *Config) OTPRateWindowDuration() time.Duration { return seconds(c.OTPRateWindow) }

// TrustedProxyPrefixes parses TRUSTED_PROXIES. A bare address is a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// TwilioEnabled reports whether real SMS delivery is configured.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
