// Package permission holds the closed catalog of permission keys and the
// set/route-rule types the guards evaluate.
package permission

import (
	"sort"
)

// Key is a single capability. Keys are compared by exact string equality;
// there is no hierarchy and no wildcard expansion.
type Key string

const (
	ViewUsers   Key = "view_users"
	CreateUsers Key = "create_users"
	EditUsers   Key = "edit_users"
	DeleteUsers Key = "delete_users"

	ViewRoles   Key = "view_roles"
	CreateRoles Key = "create_roles"
	EditRoles   Key = "edit_roles"
	DeleteRoles Key = "delete_roles"

	ViewPermissions Key = "view_permissions"
	EditPermissions Key = "edit_permissions"

	ViewDepartments   Key = "view_departments"
	CreateDepartments Key = "create_departments"
	EditDepartments   Key = "edit_departments"
	DeleteDepartments Key = "delete_departments"

	ViewGroups   Key = "view_groups"
	CreateGroups Key = "create_groups"
	EditGroups   Key = "edit_groups"
	DeleteGroups Key = "delete_groups"

	ViewFlows   Key = "view_flows"
	CreateFlows Key = "create_flows"
	EditFlows   Key = "edit_flows"
	DeleteFlows Key = "delete_flows"

	ViewSteps   Key = "view_steps"
	CreateSteps Key = "create_steps"
	EditSteps   Key = "edit_steps"
	DeleteSteps Key = "delete_steps"

	ViewTemplates   Key = "view_templates"
	CreateTemplates Key = "create_templates"
	EditTemplates   Key = "edit_templates"
	DeleteTemplates Key = "delete_templates"

	ViewTags   Key = "view_tags"
	CreateTags Key = "create_tags"
	EditTags   Key = "edit_tags"
	DeleteTags Key = "delete_tags"

	ViewSLAs   Key = "view_slas"
	CreateSLAs Key = "create_slas"
	EditSLAs   Key = "edit_slas"
	DeleteSLAs Key = "delete_slas"

	ViewTickets   Key = "view_tickets"
	CreateTickets Key = "create_tickets"
	EditTickets   Key = "edit_tickets"
	DeleteTickets Key = "delete_tickets"

	ViewNotifications Key = "view_notifications"
	SendNotifications Key = "send_notifications"
	ViewPresence      Key = "view_presence"
	ManageSessions    Key = "manage_sessions"
	UseDialer         Key = "use_dialer"
)

var catalog = func() map[Key]struct{} {
	keys := []Key{
		ViewUsers, CreateUsers, EditUsers, DeleteUsers,
		ViewRoles, CreateRoles, EditRoles, DeleteRoles,
		ViewPermissions, EditPermissions,
		ViewDepartments, CreateDepartments, EditDepartments, DeleteDepartments,
		ViewGroups, CreateGroups, EditGroups, DeleteGroups,
		ViewFlows, CreateFlows, EditFlows, DeleteFlows,
		ViewSteps, CreateSteps, EditSteps, DeleteSteps,
		ViewTemplates, CreateTemplates, EditTemplates, DeleteTemplates,
		ViewTags, CreateTags, EditTags, DeleteTags,
		ViewSLAs, CreateSLAs, EditSLAs, DeleteSLAs,
		ViewTickets, CreateTickets, EditTickets, DeleteTickets,
		ViewNotifications, SendNotifications, ViewPresence, ManageSessions, UseDialer,
	}
	m := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}()

// Valid reports whether k belongs to the catalog.
func (k Key) Valid() bool {
	_, ok := catalog[k]
	return ok
}

// All returns every catalog key in lexical order.
func All() []Key {
	out := make([]Key, 0, len(catalog))
	for k := range catalog {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Parse converts raw strings into catalog keys. Unknown strings are returned
// separately so the caller can log them.
func Parse(raw []string) (keys []Key, unknown []string) {
	for _, r := range raw {
		k := Key(r)
		if !k.Valid() {
			unknown = append(unknown, r)
			continue
		}
		keys = append(keys, k)
	}
	return keys, unknown
}

// Set is a flat set of permission keys.
type Set map[Key]struct{}

// NewSet builds a set from keys.
func NewSet(keys ...Key) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has is an exact membership test.
func (s Set) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// HasAny is true when required is empty or any required key is present.
func (s Set) HasAny(required ...Key) bool {
	if len(required) == 0 {
		return true
	}
	for _, k := range required {
		if s.Has(k) {
			return true
		}
	}
	return false
}

// HasAll is true when required is empty or every required key is present.
func (s Set) HasAll(required ...Key) bool {
	for _, k := range required {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Slice returns the keys in lexical order.
func (s Set) Slice() []Key {
	out := make([]Key, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the keys as plain strings in lexical order.
func (s Set) Strings() []string {
	keys := s.Slice()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
