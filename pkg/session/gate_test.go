package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/openngo/sitecms/pkg/auth"
	"github.com/openngo/sitecms/pkg/model"
	"github.com/openngo/sitecms/pkg/repository"
	"github.com/openngo/sitecms/pkg/session"
	"golang.org/x/crypto/bcrypt"
)

// manualSource delivers auth-state events only when told to.
type manualSource struct {
	mu sync.Mutex
	fn func(*model.Principal)
}

func (s *manualSource) OnAuthStateChanged(fn func(*model.Principal)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.fn = nil
	}
}

func (s *manualSource) fire(p *model.Principal) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (s *manualSource) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	return nil, model.ErrInvalidCredentials
}

func (s *manualSource) SignOut(ctx context.Context) error {
	s.fire(nil)
	return nil
}

func TestGateTransitions(t *testing.T) {
	src := &manualSource{}
	gate := session.NewGate(src)
	defer gate.Close()

	gt.Equal(t, gate.Snapshot().State, session.StateLoading)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := gate.Wait(ctx)
	gt.Error(t, err)

	src.fire(nil)
	snap, err := gate.Wait(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, snap.State, session.StateAnonymous)
	gt.True(t, snap.User == nil)

	src.fire(&model.Principal{ID: "u1", Email: "admin@example.org"})
	snap = gate.Snapshot()
	gt.Equal(t, snap.State, session.StateAuthenticated)
	gt.Equal(t, snap.User.Email, "admin@example.org")

	gt.NoError(t, gate.SignOut(context.Background()))
	gt.Equal(t, gate.Snapshot().State, session.StateAnonymous)
}

func TestGateSubscribe(t *testing.T) {
	src := &manualSource{}
	gate := session.NewGate(src)

	ch, cancel := gate.Subscribe()
	first := <-ch
	gt.Equal(t, first.State, session.StateLoading)

	src.fire(&model.Principal{ID: "u1"})
	next := <-ch
	gt.Equal(t, next.State, session.StateAuthenticated)

	cancel()
	_, ok := <-ch
	gt.False(t, ok)

	ch2, _ := gate.Subscribe()
	<-ch2
	gate.Close()
	_, ok = <-ch2
	gt.False(t, ok)

	// notifications after Close are ignored
	src.fire(nil)
	gt.Equal(t, gate.Snapshot().State, session.StateAuthenticated)
}

func TestGateSubscriberKeepsLatest(t *testing.T) {
	src := &manualSource{}
	gate := session.NewGate(src)
	defer gate.Close()

	ch, cancel := gate.Subscribe()
	defer cancel()

	for i := 0; i < 20; i++ {
		src.fire(nil)
	}
	src.fire(&model.Principal{ID: "last"})

	var latest session.Snapshot
	for len(ch) > 0 {
		latest = <-ch
	}
	gt.Equal(t, latest.State, session.StateAuthenticated)
	gt.Equal(t, latest.User.ID, model.RecordID("last"))
}

func TestGateSignInScenario(t *testing.T) {
	ctx := context.Background()
	svc, err := auth.NewService(repository.NewMemory(), auth.Config{Secret: "secret"},
		auth.WithBcryptCost(bcrypt.MinCost))
	gt.NoError(t, err)
	_, err = svc.Register(ctx, "admin@example.org", "correct-password", "")
	gt.NoError(t, err)

	gate := session.NewGate(auth.NewClient(ctx, svc, ""))
	defer gate.Close()

	snap, err := gate.Wait(ctx)
	gt.NoError(t, err)
	gt.Equal(t, snap.State, session.StateAnonymous)

	_, err = gate.SignIn(ctx, "admin@example.org", "wrong-password")
	gt.True(t, errors.Is(err, model.ErrInvalidCredentials))
	gt.Equal(t, gate.Snapshot().State, session.StateAnonymous)

	_, err = gate.SignIn(ctx, "admin@example.org", "correct-password")
	gt.NoError(t, err)
	snap = gate.Snapshot()
	gt.Equal(t, snap.State, session.StateAuthenticated)
	gt.Equal(t, snap.User.Email, "admin@example.org")

	gt.NoError(t, gate.SignOut(ctx))
	gt.Equal(t, gate.Snapshot().State, session.StateAnonymous)
}
