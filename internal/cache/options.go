package cache

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

type config struct {
	defaultTTL   time.Duration
	maxEntries   int
	singleFlight bool
	clock        clock.Clock
	logger       zerolog.Logger
}

func defaultConfig() *config {
	return &config{
		defaultTTL:   5 * time.Minute,
		singleFlight: true,
		clock:        clock.New(),
		logger:       zerolog.Nop(),
	}
}

type Option func(*config)

// WithDefaultTTL sets the TTL reported to callers that have no per-endpoint opinion.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.defaultTTL = ttl
	}
}

// WithMaxEntries bounds the number of entries. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n < 0 {
			n = 0
		}
		c.maxEntries = n
	}
}

// WithSingleFlight controls whether concurrent misses on one key share a single loader call.
func WithSingleFlight(enabled bool) Option {
	return func(c *config) {
		c.singleFlight = enabled
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		c.clock = clk
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
