package auth

import (
	"context"
	"slices"
	"sync"

	"github.com/openngo/sitecms/pkg/model"
	"github.com/openngo/sitecms/pkg/utils/logging"
)

// Client is one browser's view of the identity backend. It delivers
// auth-state events (initial resolution, sign-in, sign-out) to listeners in
// the order they happened. A nil principal means signed out.
type Client struct {
	svc *Service

	// dispatch serializes event delivery
	dispatch sync.Mutex

	mu        sync.Mutex
	token     string
	user      *model.Principal
	resolved  bool
	gen       uint64
	listeners []listener
	nextID    uint64
}

type listener struct {
	id uint64
	fn func(*model.Principal)
}

// NewClient starts resolving token in the background. The first event is
// delivered once resolution finishes, unless a sign-in or sign-out happens
// first.
func NewClient(ctx context.Context, svc *Service, token string) *Client {
	c := &Client{svc: svc, token: token}

	go func() {
		p, err := svc.Resolve(ctx, token)
		if err != nil {
			logging.From(ctx).Warn("failed to resolve session, treating as signed out", logging.ErrAttr(err))
			p = nil
		}
		if p == nil {
			token = ""
		}
		c.emit(0, token, p)
	}()

	return c
}

func (c *Client) emit(gen uint64, token string, p *model.Principal) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.token = token
	c.user = p
	c.resolved = true
	ls := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, l := range ls {
		l.fn(p)
	}
}

func (c *Client) advance() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

// OnAuthStateChanged registers fn for auth-state events. If the state is
// already known, fn is called with it immediately. fn must not call back
// into the Client synchronously. The returned function unsubscribes.
func (c *Client) OnAuthStateChanged(fn func(*model.Principal)) func() {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	resolved, user := c.resolved, c.user
	c.mu.Unlock()

	if resolved {
		fn(user)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.listeners = slices.DeleteFunc(c.listeners, func(l listener) bool { return l.id == id })
		})
	}
}

// SignIn verifies credentials with the identity backend. On success an
// Authenticated event follows; on failure the state is unchanged and the
// error wraps model.ErrInvalidCredentials.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.svc.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.emit(c.advance(), session.Token, session.Principal)
	return session, nil
}

// SignOut ends the current session and emits a signed-out event.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.svc.SignOut(ctx, c.Token()); err != nil {
		return err
	}
	c.emit(c.advance(), "", nil)
	return nil
}

// Token returns the current session token, empty when signed out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// CurrentUser returns the signed-in principal, or nil.
func (c *Client) CurrentUser() *model.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}
