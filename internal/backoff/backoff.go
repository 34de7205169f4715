// Package backoff wraps cenkalti/backoff/v4 with the retry policy the
// heartbeat loop uses. Grounded on
// bc-dunia-mcpdrill and juju-juju, both of which vendor the same library
// for connection-retry policies.
package backoff

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a resettable exponential backoff with a ceiling, matching the
// reconnectBaseDelay/reconnectMaxDelay pair mrf-agent-racer/tui's WS
// client hand-rolled with delay = min(delay*2, max); this wraps the
// pack's own backoff library instead of re-deriving the doubling logic.
type Policy struct {
	b *backoff.ExponentialBackOff
}

// New creates a policy starting at base and capped at max, with no
// overall time limit (the caller decides how long to keep retrying).
func New(base, max time.Duration) *Policy {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()
	return &Policy{b: b}
}

// Next returns the next delay to wait before retrying.
func (p *Policy) Next() time.Duration {
	return p.b.NextBackOff()
}

// Reset restarts the policy at its base interval, called once a
// connection attempt succeeds.
func (p *Policy) Reset() {
	p.b.Reset()
}
