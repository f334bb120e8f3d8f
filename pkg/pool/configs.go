package pool

import (
	"fmt"
	"time"
)

const (
	// DefaultMaxConnections is the MaxConnections used when a config doesn't set one.
	DefaultMaxConnections = 20

	// DefaultRetryInterval is the pause between acquire attempts while waiting on an exhausted pool.
	DefaultRetryInterval = 100 * time.Millisecond

	// DefaultProbeTimeout bounds dialect probes run when a connection is released.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultStaleAge is the checkout age CloseStale uses when given zero.
	DefaultStaleAge = 600 * time.Second

	// WaitForever makes Acquire wait without a deadline for a free slot.
	WaitForever time.Duration = -1
)

// PoolConfig represents settings for creating/configuring pools.
type PoolConfig struct {
	ApplicationName string  `json:"ApplicationName" yaml:"ApplicationName"`
	Dialect         string  `json:"Dialect" yaml:"Dialect"`               // generic, mysql, postgres or sqlite
	DSN             string  `json:"DSN" yaml:"DSN"`                       // backend connection string
	MaxConnections  int     `json:"MaxConnections" yaml:"MaxConnections"` // 0 means unbounded
	StaleTimeout    uint32  `json:"StaleTimeout" yaml:"StaleTimeout"`     // seconds, 0 means never stale
	WaitTimeout     *uint32 `json:"WaitTimeout" yaml:"WaitTimeout"`       // milliseconds, unset fails fast, 0 waits forever
	RetryInterval   uint32  `json:"RetryInterval" yaml:"RetryInterval"`   // milliseconds between attempts while waiting
	ProbeTimeout    uint32  `json:"ProbeTimeout" yaml:"ProbeTimeout"`     // milliseconds allowed for release-time probes
	LogLevel        string  `json:"LogLevel" yaml:"LogLevel"`
}

// DefaultPoolConfig returns a PoolConfig with the default limits.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Dialect:        "generic",
		MaxConnections: DefaultMaxConnections,
		RetryInterval:  uint32(DefaultRetryInterval / time.Millisecond),
		ProbeTimeout:   uint32(DefaultProbeTimeout / time.Millisecond),
		LogLevel:       "info",
	}
}

// Validate checks the config for values the Pool can't work with.
func (c *PoolConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}

	if c.MaxConnections < 0 {
		return fmt.Errorf("%w: maxconnections can't be negative", ErrInvalidConfig)
	}

	if _, err := DialectByName(c.Dialect); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// SetWaitTimeout sets the WaitTimeout from a duration. WaitForever (or 0) waits without a deadline.
func (c *PoolConfig) SetWaitTimeout(d time.Duration) {
	ms := uint32(0)
	if d > 0 {
		ms = uint32(d / time.Millisecond)
		if ms == 0 {
			ms = 1
		}
	}

	c.WaitTimeout = &ms
}

// waitTimeout converts the WaitTimeout. ok is false when the pool should fail fast.
// An explicit zero is kept as "wait forever" for compatibility with older configs.
func (c *PoolConfig) waitTimeout() (timeout time.Duration, ok bool) {
	if c.WaitTimeout == nil {
		return 0, false
	}

	if *c.WaitTimeout == 0 {
		return WaitForever, true
	}

	return time.Duration(*c.WaitTimeout) * time.Millisecond, true
}

func (c *PoolConfig) staleTimeout() time.Duration {
	return time.Duration(c.StaleTimeout) * time.Second
}

func (c *PoolConfig) retryInterval() time.Duration {
	if c.RetryInterval == 0 {
		return DefaultRetryInterval
	}

	return time.Duration(c.RetryInterval) * time.Millisecond
}

func (c *PoolConfig) probeTimeout() time.Duration {
	if c.ProbeTimeout == 0 {
		return DefaultProbeTimeout
	}

	return time.Duration(c.ProbeTimeout) * time.Millisecond
}
