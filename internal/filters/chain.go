// Package filters runs the ordered pre/post observers around every forwarded request.
package filters

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// Phase selects when a filter runs relative to forwarding.
type Phase int

const (
	// PhasePre runs after authorization and route matching, before forwarding.
	PhasePre Phase = iota
	// PhasePost runs once the response status is known, including gateway errors.
	PhasePost
)

func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhasePost:
		return "post"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Exchange is the view of one request/response pair handed to filters.
// Filters may write headers; they never see or change the body or the status.
type Exchange struct {
	Request *http.Request

	// ResponseHeader is the header map of the outgoing response.
	ResponseHeader http.Header

	// Status is the outgoing status code, zero during the pre phase.
	Status int

	// Received is when the gateway accepted the request.
	Received time.Time

	// RouteID is the matched route, empty when no route was matched.
	RouteID string
}

// Condition decides whether a filter applies to an exchange. Nil always applies.
type Condition func(ex *Exchange) bool

// Action is the filter body.
type Action func(ex *Exchange) error

// Descriptor declares one filter.
type Descriptor struct {
	Name      string
	Order     int
	Phase     Phase
	Condition Condition
	Action    Action
}

// Chain holds the enabled filters sorted by order within each phase.
// It is read-only after construction.
type Chain struct {
	pre  []Descriptor
	post []Descriptor
}

// NewChain sorts the descriptors by ascending order, keeping declaration order for ties.
func NewChain(descriptors ...Descriptor) *Chain {
	c := &Chain{}
	for _, d := range descriptors {
		if d.Action == nil {
			continue
		}
		switch d.Phase {
		case PhasePre:
			c.pre = append(c.pre, d)
		default:
			c.post = append(c.post, d)
		}
	}
	sort.SliceStable(c.pre, func(i, j int) bool { return c.pre[i].Order < c.pre[j].Order })
	sort.SliceStable(c.post, func(i, j int) bool { return c.post[i].Order < c.post[j].Order })
	return c
}

// Descriptors lists pre filters then post filters in execution order.
func (c *Chain) Descriptors() []Descriptor {
	if c == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(c.pre)+len(c.post))
	out = append(out, c.pre...)
	return append(out, c.post...)
}

// RunPre runs the pre-phase filters.
func (c *Chain) RunPre(ex *Exchange) {
	if c == nil {
		return
	}
	run(c.pre, ex)
}

// RunPost runs the post-phase filters.
func (c *Chain) RunPost(ex *Exchange) {
	if c == nil {
		return
	}
	run(c.post, ex)
}

func run(descriptors []Descriptor, ex *Exchange) {
	for _, d := range descriptors {
		runOne(d, ex)
	}
}

// runOne isolates a single filter: errors and panics are logged and the chain continues.
func runOne(d Descriptor, ex *Exchange) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("filter panicked", "filter", d.Name, "phase", d.Phase.String(), "path", ex.Request.URL.Path, "panic", rec)
		}
	}()

	if d.Condition != nil && !d.Condition(ex) {
		return
	}
	if err := d.Action(ex); err != nil {
		slog.Warn("filter failed", "filter", d.Name, "phase", d.Phase.String(), "path", ex.Request.URL.Path, "error", err)
	}
}
