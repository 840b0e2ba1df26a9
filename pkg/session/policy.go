package session

import (
	"context"
	"path"
	"strings"
)

const (
	DefaultAdminPrefix = "/admin"
	DefaultLoginPath   = "/admin/login"
)

// RoutePolicy decides which paths require an authenticated session.
type RoutePolicy interface {
	Protected(ctx context.Context, path string) (bool, error)
}

// PrefixPolicy protects every path under Prefix except the login page.
type PrefixPolicy struct {
	Prefix    string
	LoginPath string
}

// DefaultPolicy protects /admin and everything below it except /admin/login.
func DefaultPolicy() *PrefixPolicy {
	return &PrefixPolicy{Prefix: DefaultAdminPrefix, LoginPath: DefaultLoginPath}
}

func (x *PrefixPolicy) Protected(_ context.Context, p string) (bool, error) {
	p = cleanPath(p)
	if p == cleanPath(x.LoginPath) {
		return false, nil
	}
	prefix := cleanPath(x.Prefix)
	return p == prefix || strings.HasPrefix(p, prefix+"/"), nil
}

// cleanPath reduces a request path to the form the router matches on:
// query dropped, case folded, repeated slashes and dot segments collapsed.
func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return path.Clean("/" + strings.ToLower(p))
}
