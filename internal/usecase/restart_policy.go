package usecase

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RestartPolicy bounds automatic restarts after a recognition ends on its own.
type RestartPolicy struct {
	Delay      time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	// MaxAttempts caps consecutive restarts without a result in between.
	// Zero disables the cap.
	MaxAttempts int
}

func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{
		Delay:       100 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    3 * time.Second,
		MaxAttempts: 10,
	}
}

func (p RestartPolicy) normalized() RestartPolicy {
	if p.Delay <= 0 {
		p.Delay = 100 * time.Millisecond
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.MaxDelay < p.Delay {
		p.MaxDelay = p.Delay
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	return p
}

type restartBudget struct {
	policy   RestartPolicy
	backoff  *backoff.ExponentialBackOff
	attempts int
}

func newRestartBudget(policy RestartPolicy) *restartBudget {
	policy = policy.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.Delay
	b.Multiplier = policy.Multiplier
	b.MaxInterval = policy.MaxDelay
	b.RandomizationFactor = 0
	b.Reset()
	return &restartBudget{policy: policy, backoff: b}
}

// Next returns the delay before the next restart, or false once the cap is hit.
func (b *restartBudget) Next() (time.Duration, bool) {
	if b.policy.MaxAttempts > 0 && b.attempts >= b.policy.MaxAttempts {
		return 0, false
	}
	b.attempts++
	return b.backoff.NextBackOff(), true
}

func (b *restartBudget) Attempts() int {
	return b.attempts
}

func (b *restartBudget) Reset() {
	b.attempts = 0
	b.backoff.Reset()
}

// scheduleFunc runs fn after d. The returned cancel reports whether fn was prevented.
type scheduleFunc func(d time.Duration, fn func()) (cancel func() bool)

func afterFunc(d time.Duration, fn func()) func() bool {
	timer := time.AfterFunc(d, fn)
	return timer.Stop
}
