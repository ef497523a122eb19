package session

import (
	"helpdesk-dashboard/internal/domain/auth"
	"helpdesk-dashboard/internal/domain/permission"
)

type Status int

const (
	// Unauthenticated: no usable access token.
	Unauthenticated Status = iota
	// Validating: a token is present and the profile fetch has not confirmed it.
	Validating
	// Authenticated: the backend confirmed the profile and permissions.
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Validating:
		return "validating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// State is an immutable snapshot of the session.
type State struct {
	Status      Status
	User        *auth.UserIdentity
	Permissions permission.Set
}

func (s State) IsAuthenticated() bool {
	return s.Status == Authenticated
}

// IsLoading is true until the profile fetch settles the session.
func (s State) IsLoading() bool {
	return s.Status == Validating
}

// View renders the snapshot in the shape the UI consumes.
func (s State) View() auth.SessionView {
	perms := s.Permissions.Strings()
	return auth.SessionView{
		User:            s.User,
		IsAuthenticated: s.IsAuthenticated(),
		IsLoading:       s.IsLoading(),
		Permissions:     perms,
	}
}

func (s State) clone() State {
	out := State{Status: s.Status, Permissions: s.Permissions.Clone()}
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}
