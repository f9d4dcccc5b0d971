package service

import "time"

const (
	DefaultChallengeTTL = 5 * time.Minute
	DefaultAccessTTL    = 15 * time.Minute
	DefaultRefreshTTL   = 7 * 24 * time.Hour
	DefaultProduct      = "Stablecoin Payroll"
	DefaultDomain       = "localhost"
)

// Config holds the tunables of the auth flow
type Config struct {
	Domain       string // Serving domain embedded in the challenge message
	Product      string // Product name opening the challenge message
	ChallengeTTL time.Duration
	AccessTTL    time.Duration
	RefreshTTL   time.Duration

	// RevokeFamilyOnReuse revokes every session descending from the same
	// login when an already rotated refresh token is presented again
	RevokeFamilyOnReuse bool
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		Domain:       DefaultDomain,
		Product:      DefaultProduct,
		ChallengeTTL: DefaultChallengeTTL,
		AccessTTL:    DefaultAccessTTL,
		RefreshTTL:   DefaultRefreshTTL,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Domain == "" {
		c.Domain = d.Domain
	}
	if c.Product == "" {
		c.Product = d.Product
	}
	if c.ChallengeTTL <= 0 {
		c.ChallengeTTL = d.ChallengeTTL
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = d.AccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = d.RefreshTTL
	}
	return c
}
