package dct

import "fmt"

// Policy selects how initiators are matched to endpoints. The policy is fixed
// per interface at creation time; the two variants never coexist on one
// interface.
type Policy int

const (
	// PolicyDedicated pins one initiator to each endpoint for its whole
	// lifetime. Endpoint creation fails with ErrPoolExhausted once the pool
	// is fully assigned.
	PolicyDedicated Policy = iota + 1
	// PolicyShared hands initiators out per operation using round-robin
	// selection among free slots, allowing an unbounded number of endpoints
	// over a fixed pool.
	PolicyShared
)

func (p Policy) String() string {
	switch p {
	case PolicyDedicated:
		return "dedicated"
	case PolicyShared:
		return "shared"
	default:
		return "unspecified"
	}
}

// Default sizing applied by Config.withDefaults.
const (
	DefaultPoolSize       = 8
	DefaultMaxOutstanding = 16
)

// Config describes the initiator pool backing one interface instance.
type Config struct {
	// PoolSize is the number of hardware initiators reserved. The pool is
	// sized once and never resized.
	PoolSize int
	// Policy selects dedicated or shared initiator assignment.
	Policy Policy
	// MaxOutstanding bounds unretired posts per initiator.
	MaxOutstanding int
	// PendingLimit optionally caps each endpoint's pending queue; once
	// reached, Submit fails with ErrQueueFull instead of queueing. Zero
	// means unlimited.
	PendingLimit int
}

func (c Config) withDefaults() Config {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.Policy == 0 {
		c.Policy = PolicyShared
	}
	if c.MaxOutstanding == 0 {
		c.MaxOutstanding = DefaultMaxOutstanding
	}
	return c
}

func (c Config) validate() error {
	if c.PoolSize < 1 {
		return fmt.Errorf("dct: pool size must be positive, got %d", c.PoolSize)
	}
	if c.Policy != PolicyDedicated && c.Policy != PolicyShared {
		return fmt.Errorf("dct: unknown policy %d", c.Policy)
	}
	if c.MaxOutstanding < 1 {
		return fmt.Errorf("dct: max outstanding must be positive, got %d", c.MaxOutstanding)
	}
	if c.PendingLimit < 0 {
		return fmt.Errorf("dct: pending limit must not be negative, got %d", c.PendingLimit)
	}
	return nil
}
