package session

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/auth"
	"github.com/openngo/sitecms/pkg/model"
)

// State of a Gate
type State int

const (
	StateLoading State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// Snapshot is the gate state at one point in time. User is set only when
// State is StateAuthenticated.
type Snapshot struct {
	State State
	User  *model.Principal
}

// AuthSource is the identity backend as seen by a gate. auth.Client
// implements it.
type AuthSource interface {
	OnAuthStateChanged(fn func(*model.Principal)) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context) error
}

const subscriberBuffer = 8

// Gate tracks the authentication state of one browser session. It starts
// in StateLoading and applies the same transition rule to every auth-state
// notification from its source.
type Gate struct {
	source      AuthSource
	unsubscribe func()

	mu       sync.Mutex
	snap     Snapshot
	resolved chan struct{}
	subs     map[chan Snapshot]struct{}
	closed   bool
}

// NewGate creates a gate in StateLoading listening to source.
func NewGate(source AuthSource) *Gate {
	g := &Gate{
		source:   source,
		snap:     Snapshot{State: StateLoading},
		resolved: make(chan struct{}),
		subs:     map[chan Snapshot]struct{}{},
	}
	g.unsubscribe = source.OnAuthStateChanged(g.Notify)
	return g
}

// Notify applies one auth-state notification: a principal moves the gate to
// StateAuthenticated, nil moves it to StateAnonymous.
func (g *Gate) Notify(user *model.Principal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}

	if user != nil {
		g.snap = Snapshot{State: StateAuthenticated, User: user}
	} else {
		g.snap = Snapshot{State: StateAnonymous}
	}

	select {
	case <-g.resolved:
	default:
		close(g.resolved)
	}

	for ch := range g.subs {
		publish(ch, g.snap)
	}
}

// publish delivers snap, discarding the oldest pending snapshot when the
// subscriber is behind so that the latest state always arrives.
func publish(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap
}

// Wait blocks until the gate has left StateLoading and returns the state.
func (g *Gate) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-g.resolved:
		return g.Snapshot(), nil
	case <-ctx.Done():
		return g.Snapshot(), goerr.Wrap(ctx.Err(), "auth state not resolved")
	}
}

// Subscribe returns a channel that receives the current snapshot and then
// every change. The channel is closed by cancel or Close.
func (g *Gate) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	g.subs[ch] = struct{}{}
	ch <- g.snap
	g.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if _, ok := g.subs[ch]; ok {
				delete(g.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// SignIn delegates to the source. On success the source reports the new
// principal through Notify; on failure the state is unchanged and the error
// wraps model.ErrInvalidCredentials.
func (g *Gate) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	session, err := g.source.SignIn(ctx, email, password)
	if err != nil {
		return nil, goerr.Wrap(err, "sign-in failed")
	}
	return session, nil
}

// SignOut delegates to the source; the gate becomes StateAnonymous.
func (g *Gate) SignOut(ctx context.Context) error {
	if err := g.source.SignOut(ctx); err != nil {
		return goerr.Wrap(err, "sign-out failed")
	}
	return nil
}

// Close stops listening to the source and closes all subscriptions.
func (g *Gate) Close() {
	g.unsubscribe()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	for ch := range g.subs {
		delete(g.subs, ch)
		close(ch)
	}
}
