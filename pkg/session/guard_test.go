package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/openngo/sitecms/pkg/model"
	"github.com/openngo/sitecms/pkg/session"
)

func TestPrefixPolicy(t *testing.T) {
	ctx := context.Background()
	policy := session.DefaultPolicy()

	testCases := []struct {
		path      string
		protected bool
	}{
		{"/admin", true},
		{"/admin/", true},
		{"/admin/content/pages", true},
		{"/admin/content/pages/edit/abc?x=1", true},
		{"/admin/login", false},
		{"/admin/login/", false},
		{"/administrator", false},
		{"/", false},
		{"/api/pages", false},
		{"/ADMIN", true},
		{"/Admin/Content/Pages", true},
		{"/admin//content/pages", true},
		{"/api/../admin/content", true},
		{"/ADMIN/LOGIN", false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			protected, err := policy.Protected(ctx, tc.path)
			gt.NoError(t, err)
			gt.Equal(t, protected, tc.protected)
		})
	}
}

func TestGuardDecide(t *testing.T) {
	ctx := context.Background()
	guard := session.NewGuard(nil)
	authed := session.Snapshot{State: session.StateAuthenticated, User: &model.Principal{ID: "u1"}}
	anon := session.Snapshot{State: session.StateAnonymous}
	loading := session.Snapshot{State: session.StateLoading}

	testCases := []struct {
		name     string
		snap     session.Snapshot
		path     string
		action   session.Action
		location string
	}{
		{"loading protected holds", loading, "/admin", session.ActionHold, ""},
		{"anonymous protected redirects", anon, "/admin/content/events", session.ActionRedirect, "/admin/login"},
		{"authenticated protected renders", authed, "/admin", session.ActionRender, ""},
		{"public page renders", anon, "/about", session.ActionRender, ""},
		{"login page renders for anonymous", anon, "/admin/login", session.ActionRender, ""},
		{"login page renders while loading", loading, "/admin/login", session.ActionRender, ""},
		{"login page redirects signed in", authed, "/admin/login", session.ActionRedirect, "/admin"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := guard.Decide(ctx, tc.snap, tc.path)
			gt.NoError(t, err)
			gt.Equal(t, d.Action, tc.action)
			gt.Equal(t, d.Location, tc.location)
		})
	}
}

type recordingNavigator struct {
	mu        sync.Mutex
	renders   int
	redirects []string
}

func (n *recordingNavigator) Render() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.renders++
}

func (n *recordingNavigator) Redirect(location string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, location)
}

func TestGuardWatchRedirectsOnce(t *testing.T) {
	src := &manualSource{}
	gate := session.NewGate(src)
	defer gate.Close()

	guard := session.NewGuard(nil)
	nav := &recordingNavigator{}

	done := make(chan error, 1)
	go func() {
		done <- guard.Watch(context.Background(), gate, "/admin/content/pages", nav)
	}()

	// a first null-user notification resolves Loading to Anonymous
	src.fire(nil)
	src.fire(nil)

	select {
	case err := <-done:
		gt.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return")
	}

	nav.mu.Lock()
	defer nav.mu.Unlock()
	gt.Equal(t, nav.renders, 0)
	gt.A(t, nav.redirects).Length(1)
	gt.Equal(t, nav.redirects[0], "/admin/login")
}

func TestGuardWatchRendersWhenSignedIn(t *testing.T) {
	src := &manualSource{}
	gate := session.NewGate(src)
	defer gate.Close()

	guard := session.NewGuard(nil)
	nav := &recordingNavigator{}
	src.fire(&model.Principal{ID: "u1"})

	done := make(chan error, 1)
	go func() {
		done <- guard.Watch(context.Background(), gate, "/admin", nav)
	}()

	gt.True(t, eventually(func() bool {
		nav.mu.Lock()
		defer nav.mu.Unlock()
		return nav.renders == 1
	}))

	src.fire(&model.Principal{ID: "u1"})
	src.fire(nil)

	select {
	case err := <-done:
		gt.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return")
	}

	nav.mu.Lock()
	defer nav.mu.Unlock()
	gt.Equal(t, nav.renders, 1)
	gt.A(t, nav.redirects).Length(1)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestGuardCheck(t *testing.T) {
	src := &manualSource{}
	gate := session.NewGate(src)
	defer gate.Close()
	guard := session.NewGuard(nil)

	go src.fire(nil)

	d, err := guard.Check(context.Background(), gate, "/admin")
	gt.NoError(t, err)
	gt.Equal(t, d.Action, session.ActionRedirect)
	gt.Equal(t, d.Location, guard.LoginPath())
}
