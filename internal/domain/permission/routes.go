package permission

import (
	"fmt"
	"strings"
)

// RouteRule maps a route path to the permissions it requires. An empty
// Required list means any authenticated session may enter.
type RouteRule struct {
	Path     string `yaml:"path" json:"path"`
	Exact    bool   `yaml:"exact" json:"exact"`
	Required []Key  `yaml:"required" json:"required"`
}

// RouteTable is an ordered list of rules resolved by longest match.
type RouteTable struct {
	rules []RouteRule
}

// NewRouteTable validates and normalizes rules.
func NewRouteTable(rules []RouteRule) (*RouteTable, error) {
	out := make([]RouteRule, 0, len(rules))
	for i, r := range rules {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route rule %d: path %q must start with /", i, r.Path)
		}
		for _, k := range r.Required {
			if !k.Valid() {
				return nil, fmt.Errorf("route rule %q: unknown permission %q", r.Path, k)
			}
		}
		r.Path = CleanPath(r.Path)
		out = append(out, r)
	}
	return &RouteTable{rules: out}, nil
}

// Rules returns a copy of the table.
func (t *RouteTable) Rules() []RouteRule {
	return append([]RouteRule(nil), t.rules...)
}

// Match returns the rule governing path. The longest matching rule path wins;
// on equal length an exact rule beats a prefix rule, then table order decides.
// ok is false when no rule applies, meaning the path is unrestricted.
func (t *RouteTable) Match(path string) (rule RouteRule, ok bool) {
	if t == nil {
		return RouteRule{}, false
	}
	path = CleanPath(path)
	best := -1
	for i, r := range t.rules {
		if !r.matches(path) {
			continue
		}
		if best < 0 || better(r, t.rules[best]) {
			best = i
		}
	}
	if best < 0 {
		return RouteRule{}, false
	}
	return t.rules[best], true
}

func (r RouteRule) matches(path string) bool {
	if r.Exact {
		return path == r.Path
	}
	return HasPathPrefix(path, r.Path)
}

func better(candidate, current RouteRule) bool {
	if len(candidate.Path) != len(current.Path) {
		return len(candidate.Path) > len(current.Path)
	}
	return candidate.Exact && !current.Exact
}

// HasPathPrefix reports whether path equals prefix or lies beneath it on a
// segment boundary, so "/users" covers "/users/5" but not "/users2".
func HasPathPrefix(path, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// CleanPath drops a trailing slash so "/users/" and "/users" resolve alike.
func CleanPath(p string) string {
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			return "/"
		}
	}
	return p
}
