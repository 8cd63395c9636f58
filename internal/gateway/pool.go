package gateway

import (
	"fmt"
	"net/url"
	"sync/atomic"
)

// Pool is a named set of backend instances picked round-robin.
type Pool struct {
	Name      string
	instances []*url.URL
	next      atomic.Uint64
}

// NewPool parses the instance base URLs.
func NewPool(name string, instances []string) (*Pool, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("pool %s has no instances", name)
	}
	p := &Pool{Name: name, instances: make([]*url.URL, 0, len(instances))}
	for _, raw := range instances {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("pool %s: invalid instance %q: %w", name, raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
			return nil, fmt.Errorf("pool %s: instance %q must be an absolute http(s) URL", name, raw)
		}
		p.instances = append(p.instances, u)
	}
	return p, nil
}

// Pick returns the next instance.
func (p *Pool) Pick() *url.URL {
	n := p.next.Add(1) - 1
	return p.instances[n%uint64(len(p.instances))]
}

// Instances returns the instance URLs as strings.
func (p *Pool) Instances() []string {
	out := make([]string, len(p.instances))
	for i, u := range p.instances {
		out[i] = u.String()
	}
	return out
}
