package gateway

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/smartrestaurant/gateway/internal/auth"
)

//go:embed default_table.yaml
var defaultTableYAML []byte

//go:embed table.schema.json
var tableSchemaJSON []byte

const tableSchemaID = "inmemory://gateway/table.schema.json"

// TableSpec is the YAML form of the route and authorization tables.
type TableSpec struct {
	Pools             map[string]PoolSpec `yaml:"pools"`
	Routes            []RouteSpec         `yaml:"routes"`
	Authz             []AuthzSpec         `yaml:"authz"`
	AuthorityInherits map[string][]string `yaml:"authority_inherits"`
}

// PoolSpec lists the instances of one backend pool.
type PoolSpec struct {
	Instances []string `yaml:"instances"`
}

// RouteSpec is one route rule as written.
type RouteSpec struct {
	ID              string            `yaml:"id"`
	Path            string            `yaml:"path"`
	Method          string            `yaml:"method"`
	Pool            string            `yaml:"pool"`
	Rewrite         *RewriteSpec      `yaml:"rewrite"`
	RequestHeaders  map[string]string `yaml:"request_headers"`
	ResponseHeaders map[string]string `yaml:"response_headers"`
}

// RewriteSpec is a regular expression and its replacement template (${name} expands captures).
type RewriteSpec struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// AuthzSpec is one authorization rule as written.
type AuthzSpec struct {
	Path      string `yaml:"path"`
	Method    string `yaml:"method"`
	Access    string `yaml:"access"`
	Authority string `yaml:"authority"`
}

// Table is the compiled, read-only form of a TableSpec.
type Table struct {
	Pools             map[string]*Pool
	Routes            *RouteTable
	Authz             []AuthzRule
	AuthorityInherits map[string][]string
}

// DefaultTable returns the compiled built-in table.
func DefaultTable() (*Table, error) {
	return ParseTable(defaultTableYAML)
}

// LoadTable reads a table file, or the built-in table when path is empty.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gateway table: %w", err)
	}
	table, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ParseTable validates YAML against the table schema and compiles it.
func ParseTable(data []byte) (*Table, error) {
	if err := validateTable(data); err != nil {
		return nil, err
	}

	var spec TableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode gateway table: %w", err)
	}
	return Compile(spec)
}

// Compile turns a spec into a Table. Route and authz order is preserved exactly.
func Compile(spec TableSpec) (*Table, error) {
	pools := make(map[string]*Pool, len(spec.Pools))
	for name, p := range spec.Pools {
		pool, err := NewPool(name, p.Instances)
		if err != nil {
			return nil, err
		}
		pools[name] = pool
	}

	routes := make([]RouteRule, 0, len(spec.Routes))
	seen := make(map[string]struct{}, len(spec.Routes))
	for i, rs := range spec.Routes {
		if _, dup := seen[rs.ID]; dup {
			return nil, fmt.Errorf("routes[%d]: duplicate route id %q", i, rs.ID)
		}
		seen[rs.ID] = struct{}{}
		if _, ok := pools[rs.Pool]; !ok {
			return nil, fmt.Errorf("routes[%d] %s: %w %q", i, rs.ID, ErrUnknownPool, rs.Pool)
		}
		rule, err := compileRoute(rs)
		if err != nil {
			return nil, fmt.Errorf("routes[%d] %s: %w", i, rs.ID, err)
		}
		routes = append(routes, rule)
	}

	rules := make([]AuthzRule, 0, len(spec.Authz))
	for i, as := range spec.Authz {
		rule, err := compileAuthzRule(as)
		if err != nil {
			return nil, fmt.Errorf("authz[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}

	inherits := make(map[string][]string, len(spec.AuthorityInherits))
	for holder, list := range spec.AuthorityInherits {
		inherits[auth.NormalizeAuthority(holder)] = auth.NormalizeAuthorities(list)
	}

	return &Table{
		Pools:             pools,
		Routes:            NewRouteTable(routes...),
		Authz:             rules,
		AuthorityInherits: inherits,
	}, nil
}

// Authorities lists every authority the table refers to, plus defaults, sorted.
func (t *Table) Authorities(defaults ...string) []string {
	all := slices.Clone(defaults)
	for _, r := range t.Authz {
		if r.Access == AccessAuthority {
			all = append(all, r.Authority)
		}
	}
	for holder, list := range t.AuthorityInherits {
		all = append(all, holder)
		all = append(all, list...)
	}
	out := auth.NormalizeAuthorities(all)
	sort.Strings(out)
	return out
}

func validateTable(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode gateway table: %w", err)
	}
	// The schema validator works on JSON values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize gateway table: %w", err)
	}
	payload, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("normalize gateway table: %w", err)
	}

	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(tableSchemaJSON))
	if err != nil {
		return fmt.Errorf("parse schema JSON: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource(tableSchemaID, schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(tableSchemaID)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("gateway table schema validation failed: %w", err)
	}
	return nil
}
