package redirect

import (
	"context"
	"net/url"
	"sync"
)

// Navigator records the single navigation a request should end with.
type Navigator struct {
	ctx     context.Context
	current string

	mu      sync.Mutex
	target  string
	pending bool
}

// NewNavigator binds a navigator to the request context and its path.
func NewNavigator(ctx context.Context, currentPath string) *Navigator {
	return &Navigator{ctx: ctx, current: currentPath}
}

// CurrentPath is the path of the view being served.
func (n *Navigator) CurrentPath() string {
	return n.current
}

// Navigate requests a move to target. It reports false when the call was a
// no-op: a navigation is already pending, target is the current path, or the
// view is gone because the request context ended.
func (n *Navigator) Navigate(target string) bool {
	if n.ctx.Err() != nil {
		return false
	}
	if pathOf(target) == n.current {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending {
		return false
	}
	n.target = target
	n.pending = true
	return true
}

// Pending returns the requested target, if any.
func (n *Navigator) Pending() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target, n.pending
}

// Active reports whether the view can still be navigated.
func (n *Navigator) Active() bool {
	return n.ctx.Err() == nil
}

func pathOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return u.Path
}
