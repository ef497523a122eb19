// Package resource lists the dashboard CRUD screens and the permissions that
// gate them.
package resource

import (
	"helpdesk-dashboard/internal/domain/permission"
)

// Resource is one CRUD screen backed by a backend collection.
type Resource struct {
	Name    string
	APIPath string
	View    permission.Key
	Create  permission.Key
	Edit    permission.Key
	Delete  permission.Key
}

// Catalog is the fixed list of dashboard resources.
var Catalog = []Resource{
	{Name: "users", APIPath: "/users", View: permission.ViewUsers, Create: permission.CreateUsers, Edit: permission.EditUsers, Delete: permission.DeleteUsers},
	{Name: "roles", APIPath: "/roles", View: permission.ViewRoles, Create: permission.CreateRoles, Edit: permission.EditRoles, Delete: permission.DeleteRoles},
	{Name: "permissions", APIPath: "/permissions", View: permission.ViewPermissions, Create: permission.EditPermissions, Edit: permission.EditPermissions, Delete: permission.EditPermissions},
	{Name: "departments", APIPath: "/departments", View: permission.ViewDepartments, Create: permission.CreateDepartments, Edit: permission.EditDepartments, Delete: permission.DeleteDepartments},
	{Name: "groups", APIPath: "/groups", View: permission.ViewGroups, Create: permission.CreateGroups, Edit: permission.EditGroups, Delete: permission.DeleteGroups},
	{Name: "flows", APIPath: "/ticket-flows", View: permission.ViewFlows, Create: permission.CreateFlows, Edit: permission.EditFlows, Delete: permission.DeleteFlows},
	{Name: "steps", APIPath: "/ticket-steps", View: permission.ViewSteps, Create: permission.CreateSteps, Edit: permission.EditSteps, Delete: permission.DeleteSteps},
	{Name: "templates", APIPath: "/ticket-templates", View: permission.ViewTemplates, Create: permission.CreateTemplates, Edit: permission.EditTemplates, Delete: permission.DeleteTemplates},
	{Name: "tags", APIPath: "/ticket-tags", View: permission.ViewTags, Create: permission.CreateTags, Edit: permission.EditTags, Delete: permission.DeleteTags},
	{Name: "slas", APIPath: "/ticket-slas", View: permission.ViewSLAs, Create: permission.CreateSLAs, Edit: permission.EditSLAs, Delete: permission.DeleteSLAs},
	{Name: "tickets", APIPath: "/tickets", View: permission.ViewTickets, Create: permission.CreateTickets, Edit: permission.EditTickets, Delete: permission.DeleteTickets},
}

// Lookup finds a resource by name.
func Lookup(name string) (Resource, bool) {
	for _, r := range Catalog {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

// DefaultRouteRules derives the dashboard route table: the dashboard root is
// authenticated-only and each resource screen needs its view permission.
func DefaultRouteRules(base string) []permission.RouteRule {
	rules := []permission.RouteRule{
		{Path: base},
		{Path: base + "/notifications", Required: []permission.Key{permission.ViewNotifications}},
		{Path: base + "/presence", Required: []permission.Key{permission.ViewPresence}},
		{Path: base + "/dialer", Required: []permission.Key{permission.UseDialer}},
	}
	for _, r := range Catalog {
		rules = append(rules, permission.RouteRule{
			Path:     base + "/" + r.Name,
			Required: []permission.Key{r.View},
		})
	}
	return rules
}
