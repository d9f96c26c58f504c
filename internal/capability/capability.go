// Package capability declares the collaborators the ledgers consume but never
// implement: value transfer, time and caller authorization.
package capability

import (
	"context"
	"sync"
	"time"

	"github.com/bioneo/stakeledger/internal/fault"
)

type Address string

// Asset names a fungible balance, e.g. the reward token, an LP token or a
// single NFT mint.
type Asset string

// Transfer moves Amount of Asset from From to To, authorized by Authority.
type Transfer struct {
	Asset     Asset
	From      Address
	To        Address
	Authority Address
	Amount    uint64
}

// Transferer applies every leg or none of them.
type Transferer interface {
	Transfer(ctx context.Context, legs ...Transfer) error
}

// Clock returns wall-clock unix seconds.
type Clock interface {
	Now(ctx context.Context) (uint64, error)
}

// AccessControl reports whether signer may act as required.
type AccessControl interface {
	Authorized(signer, required Address) bool
}

// SignerMatch authorizes a signer acting only for itself.
type SignerMatch struct{}

func (SignerMatch) Authorized(signer, required Address) bool {
	return signer != "" && signer == required
}

type SystemClock struct{}

func (SystemClock) Now(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fault.ErrClockUnavailable
	}
	now := time.Now().Unix()
	if now < 0 {
		return 0, fault.ErrClockUnavailable
	}
	return uint64(now), nil
}

// ManualClock is a settable clock for tests and simulations.
type ManualClock struct {
	mu   sync.Mutex
	now  uint64
	fail bool
}

func NewManualClock(now uint64) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return 0, fault.ErrClockUnavailable
	}
	return c.now, nil
}

func (c *ManualClock) Set(now uint64) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *ManualClock) Advance(seconds uint64) {
	c.mu.Lock()
	c.now += seconds
	c.mu.Unlock()
}

// Fail makes every following Now call report the clock as unavailable.
func (c *ManualClock) Fail(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}
