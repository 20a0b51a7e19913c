package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("notifier circuit open")

const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

type ProtectedNotifierConfig struct {
	Timeout          time.Duration // per notice
	FailureThreshold int           // consecutive failures that open the circuit
	Cooldown         time.Duration // time open before a trial notice
	HalfOpenMaxCalls int           // concurrent trial notices

	// OnStateChange runs after each transition, outside the breaker lock.
	OnStateChange func(from, to string)
}

// ProtectedNotifier bounds each comment notice with a timeout and stops
// calling a failing backend until the cooldown passes. Comments are already
// stored when a notice is sent, so a skipped notice loses nothing.
type ProtectedNotifier struct {
	inner Notifier
	cfg   ProtectedNotifierConfig
	now   func() time.Time

	mu           sync.Mutex
	state        string
	failures     int
	openedAt     time.Time
	trialsActive int
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedNotifier{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
}

func (n *ProtectedNotifier) NotifyComment(ctx context.Context, notice CommentNotice) error {
	if !n.acquire() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	err := n.inner.NotifyComment(sendCtx, notice)
	n.release(err)

	return err
}

func (n *ProtectedNotifier) acquire() bool {
	n.mu.Lock()
	from := n.state
	ok := true

	switch n.state {
	case StateOpen:
		if n.now().Sub(n.openedAt) < n.cfg.Cooldown {
			ok = false
			break
		}
		n.state = StateHalfOpen
		n.trialsActive = 1
	case StateHalfOpen:
		if n.trialsActive >= n.cfg.HalfOpenMaxCalls {
			ok = false
			break
		}
		n.trialsActive++
	}

	to := n.state
	n.mu.Unlock()

	n.transitioned(from, to)
	return ok
}

func (n *ProtectedNotifier) release(err error) {
	n.mu.Lock()
	from := n.state

	if n.state == StateHalfOpen && n.trialsActive > 0 {
		n.trialsActive--
	}

	switch {
	case err == nil:
		n.failures = 0
		n.state = StateClosed
	case n.state == StateHalfOpen:
		n.failures++
		n.open()
	default:
		n.failures++
		if n.failures >= n.cfg.FailureThreshold {
			n.open()
		}
	}

	to := n.state
	n.mu.Unlock()

	n.transitioned(from, to)
}

// open is called with mu held.
func (n *ProtectedNotifier) open() {
	n.state = StateOpen
	n.openedAt = n.now()
	n.trialsActive = 0
}

func (n *ProtectedNotifier) transitioned(from, to string) {
	if from != to && n.cfg.OnStateChange != nil {
		n.cfg.OnStateChange(from, to)
	}
}

func (n *ProtectedNotifier) State() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}
