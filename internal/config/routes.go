package config

import (
	"fmt"
	"os"
	"strings"

	"helpdesk-dashboard/internal/domain/permission"

	"gopkg.in/yaml.v3"
)

type routeFile struct {
	Rules []struct {
		Path     string   `yaml:"path"`
		Exact    bool     `yaml:"exact"`
		Required []string `yaml:"required"`
	} `yaml:"rules"`
}

// LoadRouteRules reads a route permission table:
//
//	rules:
//	  - path: /dashboard/users
//	    required: [view_users]
//
// Unknown permission keys are rejected so a typo cannot open a route.
func LoadRouteRules(path string) ([]permission.RouteRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route rules: %w", err)
	}

	var f routeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse route rules: %w", err)
	}

	rules := make([]permission.RouteRule, 0, len(f.Rules))
	for i, r := range f.Rules {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route rule %d: path %q must start with /", i, r.Path)
		}
		keys, unknown := permission.Parse(r.Required)
		if len(unknown) > 0 {
			return nil, fmt.Errorf("route rule %s: unknown permissions %s", r.Path, strings.Join(unknown, ", "))
		}
		rules = append(rules, permission.RouteRule{
			Path:     permission.CleanPath(r.Path),
			Exact:    r.Exact,
			Required: keys,
		})
	}
	return rules, nil
}
