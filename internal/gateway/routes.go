package gateway

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// RouteRule maps matching requests to a backend pool. Immutable after compile.
type RouteRule struct {
	ID              string
	Pattern         Pattern
	Method          string
	Pool            string
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string

	rewrite     *regexp.Regexp
	replacement string
}

func compileRoute(rs RouteSpec) (RouteRule, error) {
	pattern, err := CompilePattern(rs.Path)
	if err != nil {
		return RouteRule{}, err
	}
	rule := RouteRule{
		ID:              rs.ID,
		Pattern:         pattern,
		Method:          strings.ToUpper(rs.Method),
		Pool:            rs.Pool,
		RequestHeaders:  rs.RequestHeaders,
		ResponseHeaders: rs.ResponseHeaders,
	}
	if rs.Rewrite != nil {
		re, err := regexp.Compile(rs.Rewrite.Pattern)
		if err != nil {
			return RouteRule{}, fmt.Errorf("invalid rewrite pattern: %w", err)
		}
		rule.rewrite = re
		rule.replacement = rs.Rewrite.Replacement
	}
	return rule, nil
}

// Matches reports whether the rule applies to method and path.
func (r RouteRule) Matches(method, path string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return r.Pattern.Match(path)
}

// RewritePath applies the rewrite template to path. Paths the pattern does not
// match are returned unchanged; an empty result becomes "/".
func (r RouteRule) RewritePath(path string) string {
	if r.rewrite == nil {
		return path
	}
	out := r.rewrite.ReplaceAllString(path, r.replacement)
	if out == "" {
		return "/"
	}
	return out
}

// Rewrite describes the rewrite for listings, empty when there is none.
func (r RouteRule) Rewrite() string {
	if r.rewrite == nil {
		return ""
	}
	return r.rewrite.String() + " -> " + r.replacement
}

// ApplyRequestHeaders sets the rule's static request headers.
func (r RouteRule) ApplyRequestHeaders(h http.Header) {
	for k, v := range r.RequestHeaders {
		h.Set(k, v)
	}
}

// ApplyResponseHeaders sets the rule's static response headers.
func (r RouteRule) ApplyResponseHeaders(h http.Header) {
	for k, v := range r.ResponseHeaders {
		h.Set(k, v)
	}
}

// RouteTable is the ordered list of route rules. First match wins.
type RouteTable struct {
	rules []RouteRule
}

// NewRouteTable keeps the rules in the given order.
func NewRouteTable(rules ...RouteRule) *RouteTable {
	return &RouteTable{rules: rules}
}

// Match returns the first rule matching method and path.
func (t *RouteTable) Match(method, path string) (RouteRule, bool) {
	for _, r := range t.rules {
		if r.Matches(method, path) {
			return r, true
		}
	}
	return RouteRule{}, false
}

// Rules returns the rules in evaluation order.
func (t *RouteTable) Rules() []RouteRule {
	out := make([]RouteRule, len(t.rules))
	copy(out, t.rules)
	return out
}
