package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smartrestaurant/gateway/internal/filters"
	"github.com/smartrestaurant/gateway/internal/services/iam"
	"github.com/smartrestaurant/gateway/internal/telemetry"
)

// RequestObserver receives per-request outcomes.
type RequestObserver interface {
	ObserveRequest(route, method string, status int, elapsed time.Duration)
	IncAuthzDenied(reason string)
}

// Dispatcher is the request-time pipeline:
//
//	RECEIVED → AUTHZ_CHECKED → ROUTE_MATCHED → PRE_FILTERED → FORWARDED → POST_FILTERED → RESPONDED
//
// Post-phase filters run on every response, including redirects to sign-on and
// gateway errors. Pre-phase filters only run for requests that will be forwarded.
type Dispatcher struct {
	guard          *Guard
	routes         *RouteTable
	pools          map[string]*Pool
	chain          *filters.Chain
	transport      http.RoundTripper
	backendTimeout time.Duration
	loginPath      string
	observer       RequestObserver
	now            func() time.Time
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Table *Table
	Guard *Guard
	Chain *filters.Chain

	// Transport defaults to NewTransport().
	Transport      http.RoundTripper
	BackendTimeout time.Duration

	// LoginPath receives unauthenticated browsers. Empty answers 401 instead.
	LoginPath string

	Observer RequestObserver
}

// NewDispatcher creates the dispatcher.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	transport := opts.Transport
	if transport == nil {
		transport = NewTransport()
	}
	timeout := opts.BackendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		guard:          opts.Guard,
		routes:         opts.Table.Routes,
		pools:          opts.Table.Pools,
		chain:          opts.Chain,
		transport:      transport,
		backendTimeout: timeout,
		loginPath:      opts.LoginPath,
		observer:       opts.Observer,
		now:            time.Now,
	}
}

// NewTransport returns the traced backend transport. Connection setup is bounded;
// the overall call is bounded by the dispatcher's backend timeout.
func NewTransport() http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	base.MaxIdleConnsPerHost = 32
	return otelhttp.NewTransport(base)
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	received := d.now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	ex := &filters.Exchange{Request: r, ResponseHeader: ww.Header(), Received: received}

	defer func() {
		if d.observer != nil {
			d.observer.ObserveRequest(ex.RouteID, r.Method, ww.Status(), d.now().Sub(received))
		}
	}()

	principal, _ := iam.PrincipalFromContext(r.Context())

	requestPath, err := CanonicalPath(r.URL)
	if err != nil {
		slog.Warn("request path rejected", "method", r.Method, "path", r.URL.EscapedPath(), "subject", subjectOf(principal), "error", err)
		d.fail(ww, ex, err)
		return
	}

	decision := d.guard.CheckPath(r.Method, requestPath, principal)
	if !decision.Allowed() {
		d.reject(ww, r, ex, decision, principal)
		return
	}

	route, ok := d.routes.Match(r.Method, requestPath)
	if !ok {
		slog.Info("no route matched", "method", r.Method, "path", requestPath, "subject", subjectOf(principal))
		d.fail(ww, ex, ErrNoRoute)
		return
	}
	ex.RouteID = route.ID

	pool, ok := d.pools[route.Pool]
	if !ok {
		slog.Error("route references unknown pool", "route", route.ID, "pool", route.Pool)
		d.fail(ww, ex, fmt.Errorf("%w %q", ErrUnknownPool, route.Pool))
		return
	}

	d.forward(ww, r, ex, route, pool, requestPath)
}

// forward runs the pre filters on the outbound copy of the request and proxies it
// to one instance of the pool.
func (d *Dispatcher) forward(w http.ResponseWriter, r *http.Request, ex *filters.Exchange, route RouteRule, pool *Pool, requestPath string) {
	target := pool.Pick()
	rewritten := route.RewritePath(requestPath)

	ctx, span := telemetry.StartSpan(r.Context(), telemetry.TracerGateway, "gateway.Forward",
		attribute.String(telemetry.AttrRouteID, route.ID),
		attribute.String(telemetry.AttrRoutePool, route.Pool),
		attribute.String(telemetry.AttrRewritePath, rewritten),
	)
	defer span.End()

	// Client disconnects cancel the parent context; the deadline bounds the backend.
	ctx, cancel := context.WithTimeout(ctx, d.backendTimeout)
	defer cancel()

	outbound := r.Clone(ctx)
	ex.Request = outbound
	preset := headerNames(w.Header())
	d.chain.RunPre(ex)
	stamped := addedHeaders(w.Header(), preset)

	proxy := &httputil.ReverseProxy{
		Transport: d.transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = target.Scheme
			pr.Out.URL.Host = target.Host
			pr.Out.URL.Path = joinPath(target.Path, rewritten)
			pr.Out.URL.RawPath = ""
			pr.Out.Host = ""
			pr.SetXForwarded()
			route.ApplyRequestHeaders(pr.Out.Header)
		},
		ModifyResponse: func(resp *http.Response) error {
			// Headers stamped by pre filters replace the backend's copy.
			for _, name := range stamped {
				resp.Header.Del(name)
			}
			route.ApplyResponseHeaders(resp.Header)
			ex.Status = resp.StatusCode
			ex.ResponseHeader = resp.Header
			d.chain.RunPost(ex)
			return nil
		},
		ErrorHandler: func(rw http.ResponseWriter, req *http.Request, err error) {
			telemetry.RecordError(span, err)
			gwErr := d.classifyBackendError(r, err)
			slog.Warn("backend call failed",
				"route", route.ID,
				"pool", route.Pool,
				"target", target.String(),
				"path", rewritten,
				"error", err,
			)
			route.ApplyResponseHeaders(rw.Header())
			d.fail(rw, ex, gwErr)
		},
	}

	proxy.ServeHTTP(w, outbound)
}

// classifyBackendError maps a transport error to the gateway taxonomy.
func (d *Dispatcher) classifyBackendError(in *http.Request, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: no response within %s", ErrBackendTimeout, d.backendTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}
	if in.Context().Err() != nil {
		return fmt.Errorf("%w: client disconnected", ErrBackendUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

// reject answers a request the guard did not allow. No backend is contacted.
func (d *Dispatcher) reject(w http.ResponseWriter, r *http.Request, ex *filters.Exchange, decision Decision, principal *iam.Principal) {
	slog.Warn("request rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"subject", subjectOf(principal),
		"outcome", decision.Outcome.String(),
		"rule_index", decision.RuleIndex,
		"rule", decision.Rule.String(),
		"reason", decision.Reason,
	)
	if d.observer != nil {
		d.observer.IncAuthzDenied(decision.Outcome.String())
	}

	if decision.Outcome == AuthenticationRequired {
		if d.loginPath != "" && !isXHR(r) {
			location := d.loginPath + "?redirect_uri=" + url.QueryEscape(r.URL.RequestURI())
			ex.Status = http.StatusFound
			d.chain.RunPost(ex)
			http.Redirect(w, r, location, http.StatusFound)
			return
		}
		d.fail(w, ex, ErrAuthenticationRequired)
		return
	}
	d.fail(w, ex, fmt.Errorf("%w: %s", ErrAuthorizationDenied, decision.Reason))
}

// fail runs the post filters and writes a JSON error for err.
func (d *Dispatcher) fail(w http.ResponseWriter, ex *filters.Exchange, err error) {
	status := StatusFor(err)
	ex.Status = status
	ex.ResponseHeader = w.Header()
	d.chain.RunPost(ex)
	WriteError(w, status, rootMessage(err))
}

// rootMessage hides transport details from clients.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		ErrAuthenticationRequired, ErrAuthorizationDenied, ErrNoRoute,
		ErrBackendTimeout, ErrBackendUnavailable, ErrUnknownPool, ErrBadRequestPath,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return http.StatusText(http.StatusInternalServerError)
}

func isXHR(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

func subjectOf(p *iam.Principal) string {
	if p == nil {
		return ""
	}
	return p.Subject
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(p, "/")
}

func headerNames(h http.Header) map[string]struct{} {
	names := make(map[string]struct{}, len(h))
	for name := range h {
		names[name] = struct{}{}
	}
	return names
}

func addedHeaders(h http.Header, before map[string]struct{}) []string {
	var added []string
	for name := range h {
		if _, ok := before[name]; !ok {
			added = append(added, name)
		}
	}
	return added
}
