package config

import "time"

// IdentityConfig tunes the profile cache, role recovery, and callback flows.
type IdentityConfig struct {
	Cache    ProfileCacheConfig `envPrefix:"PROFILE_"`
	Recovery RecoveryConfig     `envPrefix:"RECOVERY_"`
	Callback CallbackConfig     `envPrefix:"CALLBACK_"`
}

// Sanitize applies guardrails to identity sub-configs.
func (c *IdentityConfig) Sanitize() {
	c.Cache.Sanitize()
	c.Recovery.Sanitize()
	c.Callback.Sanitize()
}

// ProfileCacheConfig controls profile cache freshness and fetch coalescing.
type ProfileCacheConfig struct {
	// Freshness is how long a cached profile entry is served without a
	// store round trip.
	Freshness time.Duration `env:"CACHE_FRESHNESS" envDefault:"5m"`

	// FetchLeaseTTL bounds the in-flight fetch lease so a crashed worker
	// cannot wedge a client's profile resolution.
	FetchLeaseTTL time.Duration `env:"FETCH_LEASE_TTL" envDefault:"10s"`
}

// Sanitize enforces safe defaults for cache tuning.
func (c *ProfileCacheConfig) Sanitize() {
	if c.Freshness <= 0 {
		c.Freshness = 5 * time.Minute
	}
	if c.FetchLeaseTTL <= 0 {
		c.FetchLeaseTTL = 10 * time.Second
	}
}

// RecoveryConfig controls the role recovery engine.
type RecoveryConfig struct {
	// MaxAttempts caps recovery tries per client before giving up.
	MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"3"`

	// NewAccountWindow is how recently an account must have been created
	// for recovery to run.
	NewAccountWindow time.Duration `env:"NEW_ACCOUNT_WINDOW" envDefault:"5m"`

	// SignupTimeout is how long a signup-in-progress marker stays valid.
	SignupTimeout time.Duration `env:"SIGNUP_TIMEOUT" envDefault:"30m"`
}

// Sanitize enforces safe defaults for recovery tuning.
func (c *RecoveryConfig) Sanitize() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.NewAccountWindow <= 0 {
		c.NewAccountWindow = 5 * time.Minute
	}
	if c.SignupTimeout <= 0 {
		c.SignupTimeout = 30 * time.Minute
	}
}

// CallbackConfig controls auth callback completion.
type CallbackConfig struct {
	// Timeout is the hard deadline for the whole callback flow.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"20s"`
}

// Sanitize enforces safe defaults for callback tuning.
func (c *CallbackConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
}
