package session

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// Action is what a page should do for the current state
type Action int

const (
	// ActionHold renders nothing until the state leaves StateLoading.
	ActionHold Action = iota
	ActionRender
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionHold:
		return "hold"
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	}
	return "unknown"
}

type Decision struct {
	Action   Action
	Location string
}

// Guard applies a RoutePolicy to gate snapshots.
type Guard struct {
	policy    RoutePolicy
	loginPath string
	homePath  string
}

type GuardOption func(*Guard)

// WithLoginPath sets where anonymous visitors of protected pages are sent.
func WithLoginPath(path string) GuardOption {
	return func(g *Guard) { g.loginPath = path }
}

// WithHomePath sets where signed-in visitors of the login page are sent.
func WithHomePath(path string) GuardOption {
	return func(g *Guard) { g.homePath = path }
}

func NewGuard(policy RoutePolicy, opts ...GuardOption) *Guard {
	if policy == nil {
		policy = DefaultPolicy()
	}
	g := &Guard{
		policy:    policy,
		loginPath: DefaultLoginPath,
		homePath:  DefaultAdminPrefix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) LoginPath() string { return g.loginPath }
func (g *Guard) HomePath() string  { return g.homePath }

// Decide returns the action for path under snap.
func (g *Guard) Decide(ctx context.Context, snap Snapshot, path string) (Decision, error) {
	path = cleanPath(path)
	if path == cleanPath(g.loginPath) {
		if snap.State == StateAuthenticated {
			return Decision{Action: ActionRedirect, Location: g.homePath}, nil
		}
		return Decision{Action: ActionRender}, nil
	}

	protected, err := g.policy.Protected(ctx, path)
	if err != nil {
		return Decision{}, goerr.Wrap(err, "failed to check route", goerr.V("path", path))
	}
	if !protected {
		return Decision{Action: ActionRender}, nil
	}

	switch snap.State {
	case StateAuthenticated:
		return Decision{Action: ActionRender}, nil
	case StateAnonymous:
		return Decision{Action: ActionRedirect, Location: g.loginPath}, nil
	default:
		return Decision{Action: ActionHold}, nil
	}
}

// Check waits for the gate to resolve and returns the final decision for
// path. It never returns ActionHold unless ctx ends first.
func (g *Guard) Check(ctx context.Context, gate *Gate, path string) (Decision, error) {
	snap, err := gate.Wait(ctx)
	if err != nil {
		return Decision{Action: ActionHold}, err
	}
	return g.Decide(ctx, snap, path)
}

// Navigator is the page being guarded
type Navigator interface {
	Render()
	Redirect(location string)
}

// Watch follows gate changes for a page at path. Render is called whenever
// the page becomes viewable and Redirect is called at most once, after
// which Watch returns.
func (g *Guard) Watch(ctx context.Context, gate *Gate, path string, nav Navigator) error {
	ch, cancel := gate.Subscribe()
	defer cancel()

	last := ActionHold
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			d, err := g.Decide(ctx, snap, path)
			if err != nil {
				return err
			}
			switch d.Action {
			case ActionRedirect:
				nav.Redirect(d.Location)
				return nil
			case ActionRender:
				if last != ActionRender {
					nav.Render()
				}
			}
			last = d.Action
		}
	}
}
