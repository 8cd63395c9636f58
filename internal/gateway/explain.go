package gateway

import (
	"github.com/smartrestaurant/gateway/internal/services/iam"
)

// Explanation describes what the pipeline would do with a request, without forwarding it.
type Explanation struct {
	Method        string
	Path          string
	Decision      Decision
	Route         *RouteRule
	RewrittenPath string
	Instances     []string

	// Err is set when the path would be rejected before the guard runs.
	Err error
}

// Explain evaluates the guard and route table for method and path.
func (d *Dispatcher) Explain(method, path string, principal *iam.Principal) Explanation {
	e := Explanation{Method: method, Path: path}
	canonical, err := canonicalize(path)
	if err != nil {
		e.Err = err
		return e
	}
	path = canonical
	e.Decision = d.guard.CheckPath(method, path, principal)
	route, ok := d.routes.Match(method, path)
	if !ok {
		return e
	}
	e.Route = &route
	e.RewrittenPath = route.RewritePath(path)
	if pool, ok := d.pools[route.Pool]; ok {
		e.Instances = pool.Instances()
	}
	return e
}
