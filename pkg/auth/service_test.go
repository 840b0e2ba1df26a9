package auth_test

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
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newService(t *testing.T, opts ...auth.Option) (*auth.Service, *repository.Database) {
	db := repository.NewMemory()
	opts = append([]auth.Option{auth.WithBcryptCost(bcrypt.MinCost)}, opts...)
	svc, err := auth.NewService(db, auth.Config{Secret: "test-secret"}, opts...)
	gt.NoError(t, err)

	_, err = svc.Register(context.Background(), "admin@example.org", "correct-password", "Admin")
	gt.NoError(t, err)
	return svc, db
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := auth.NewService(repository.NewMemory(), auth.Config{})
	gt.Error(t, err)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, " Admin@Example.org ", "another-password", "")
		gt.True(t, errors.Is(err, model.ErrConflict))
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.Register(ctx, "editor@example.org", "short", "")
		gt.True(t, errors.Is(err, model.ErrValidation))
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := svc.Register(ctx, "editor", "long-enough-password", "")
		gt.True(t, errors.Is(err, model.ErrValidation))
	})

	t.Run("password is hashed", func(t *testing.T) {
		users, err := repository.Users(db).GetAll(ctx)
		gt.NoError(t, err)
		gt.A(t, users).Length(1)
		gt.NotEqual(t, users[0].PasswordHash, "correct-password")
		gt.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].PasswordHash), []byte("correct-password")))
	})

	t.Run("list omits hashes", func(t *testing.T) {
		principals, err := svc.ListUsers(ctx)
		gt.NoError(t, err)
		gt.A(t, principals).Length(1)
		gt.Equal(t, principals[0].Email, "admin@example.org")
		gt.Equal(t, principals[0].Name(), "Admin")
	})
}

func TestRegisterConcurrentDuplicate(t *testing.T) {
	ctx := context.Background()
	db := repository.NewMemory()
	svc, err := auth.NewService(db, auth.Config{Secret: "test-secret"}, auth.WithBcryptCost(bcrypt.MinCost))
	gt.NoError(t, err)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, "editor@example.org", "long-enough-password", "")
		}()
	}
	wg.Wait()

	var created int
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		gt.True(t, errors.Is(err, model.ErrConflict))
	}
	gt.Equal(t, created, 1)

	users, err := repository.Users(db).GetAll(ctx)
	gt.NoError(t, err)
	gt.A(t, users).Length(1)
}

func TestSignInAndResolve(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	session, err := svc.SignIn(ctx, "admin@example.org", "correct-password")
	gt.NoError(t, err)
	gt.NotEqual(t, session.Token, "")
	gt.Equal(t, session.Principal.Email, "admin@example.org")

	p, err := svc.Resolve(ctx, session.Token)
	gt.NoError(t, err)
	gt.NotNil(t, p)
	gt.Equal(t, p.ID, session.Principal.ID)

	gt.NoError(t, svc.SignOut(ctx, session.Token))

	p, err = svc.Resolve(ctx, session.Token)
	gt.NoError(t, err)
	gt.True(t, p == nil)
}

func TestSignInRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.SignIn(ctx, "admin@example.org", "wrong-password")
	gt.True(t, errors.Is(err, model.ErrInvalidCredentials))
	gt.True(t, auth.IsInvalidCredentials(err))

	_, err = svc.SignIn(ctx, "nobody@example.org", "correct-password")
	gt.True(t, errors.Is(err, model.ErrInvalidCredentials))
}

func TestResolveRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Now()}
	svc, db := newService(t, auth.WithClock(clock.Now))

	session, err := svc.SignIn(ctx, "admin@example.org", "correct-password")
	gt.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		p, err := svc.Resolve(ctx, "")
		gt.NoError(t, err)
		gt.True(t, p == nil)
	})

	t.Run("garbage", func(t *testing.T) {
		p, err := svc.Resolve(ctx, "not-a-token")
		gt.NoError(t, err)
		gt.True(t, p == nil)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := auth.NewService(db, auth.Config{Secret: "other-secret"})
		gt.NoError(t, err)
		p, err := other.Resolve(ctx, session.Token)
		gt.NoError(t, err)
		gt.True(t, p == nil)
	})

	t.Run("expired", func(t *testing.T) {
		clock.now = clock.now.Add(auth.DefaultSessionTTL + time.Minute)
		p, err := svc.Resolve(ctx, session.Token)
		gt.NoError(t, err)
		gt.True(t, p == nil)
	})
}

func TestResolveBackendUnavailable(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)

	session, err := svc.SignIn(ctx, "admin@example.org", "correct-password")
	gt.NoError(t, err)

	gt.NoError(t, db.Close(ctx))
	_, err = svc.Resolve(ctx, session.Token)
	gt.True(t, errors.Is(err, model.ErrBackendUnavailable))
}
