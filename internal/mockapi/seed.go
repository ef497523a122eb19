package mockapi

import (
	"helpdesk-dashboard/internal/domain/permission"
)

// DefaultAccounts are the development logins. Every password is "password".
func DefaultAccounts() []Account {
	return []Account{
		{
			Tenant:      "acme",
			Username:    "admin",
			Password:    "password",
			FullName:    "Ada Admin",
			Email:       "admin@acme.test",
			Role:        "admin",
			Permissions: permission.All(),
		},
		{
			Tenant:   "acme",
			Username: "agent",
			Password: "password",
			FullName: "Alex Agent",
			Email:    "agent@acme.test",
			Role:     "agent",
			Permissions: []permission.Key{
				permission.ViewTickets, permission.CreateTickets, permission.EditTickets,
				permission.ViewTags, permission.ViewSLAs,
				permission.ViewNotifications, permission.UseDialer,
			},
		},
		{
			Tenant:      "acme",
			Username:    "viewer",
			Password:    "password",
			FullName:    "Val Viewer",
			Email:       "viewer@acme.test",
			Role:        "viewer",
			Permissions: []permission.Key{permission.ViewTickets},
		},
	}
}

func seedCollections(s *store) {
	for _, d := range []string{"Support", "Billing", "Engineering"} {
		s.create("/departments", map[string]any{"name": d})
	}
	for _, tag := range []string{"urgent", "refund", "bug"} {
		s.create("/ticket-tags", map[string]any{"name": tag})
	}
	s.create("/ticket-slas", map[string]any{"name": "Standard", "response_minutes": 240})
	s.create("/tickets", map[string]any{"subject": "Cannot log in", "status": "open", "priority": "high"})
	s.create("/tickets", map[string]any{"subject": "Invoice is wrong", "status": "pending", "priority": "normal"})
}
