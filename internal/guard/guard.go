// Package guard decides whether a session may see a page or a fragment.
package guard

import (
	"helpdesk-dashboard/internal/domain/permission"
	"helpdesk-dashboard/internal/session"
)

// Mode selects how a list of required permissions is combined.
type Mode int

const (
	Any Mode = iota
	All
)

type Decision int

const (
	// Render the protected content.
	Render Decision = iota
	// Wait renders nothing while the session is still validating.
	Wait
	RedirectSignIn
	RedirectForbidden
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case Wait:
		return "wait"
	case RedirectSignIn:
		return "sign_in"
	case RedirectForbidden:
		return "forbidden"
	}
	return "unknown"
}

// Evaluate is the page-level predicate. An empty required list means any
// authenticated session is enough.
func Evaluate(st session.State, required []permission.Key, mode Mode) Decision {
	if st.IsLoading() {
		return Wait
	}
	if !st.IsAuthenticated() {
		return RedirectSignIn
	}
	if !satisfies(st.Permissions, required, mode) {
		return RedirectForbidden
	}
	return Render
}

func satisfies(have permission.Set, required []permission.Key, mode Mode) bool {
	if mode == All {
		return have.HasAll(required...)
	}
	return have.HasAny(required...)
}

// Requirement describes the permissions a UI fragment needs. All set
// fields must hold; an empty Requirement only needs authentication.
type Requirement struct {
	Permission permission.Key
	Any        []permission.Key
	All        []permission.Key
}

// Allowed is the component-level predicate. It never redirects.
func Allowed(st session.State, req Requirement) bool {
	if !st.IsAuthenticated() {
		return false
	}
	if req.Permission != "" && !st.Permissions.Has(req.Permission) {
		return false
	}
	return st.Permissions.HasAny(req.Any...) && st.Permissions.HasAll(req.All...)
}

// Component returns content when req is satisfied and fallback
// otherwise. The zero value of T is the "render nothing" fallback.
func Component[T any](st session.State, req Requirement, content, fallback T) T {
	if Allowed(st, req) {
		return content
	}
	return fallback
}
