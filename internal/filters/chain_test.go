package filters

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrestaurant/gateway/internal/config"
)

func newExchange(method, target string) *Exchange {
	return &Exchange{
		Request:        httptest.NewRequest(method, target, nil),
		ResponseHeader: http.Header{},
		Received:       time.Now(),
	}
}

func recordingFilter(name string, order int, phase Phase, log *[]string) Descriptor {
	return Descriptor{
		Name:  name,
		Order: order,
		Phase: phase,
		Action: func(*Exchange) error {
			*log = append(*log, name)
			return nil
		},
	}
}

func TestChain_OrdersWithinPhase(t *testing.T) {
	var log []string
	chain := NewChain(
		recordingFilter("post-2", 2, PhasePost, &log),
		recordingFilter("pre-1", 1, PhasePre, &log),
		recordingFilter("post-0a", 0, PhasePost, &log),
		recordingFilter("pre-0", 0, PhasePre, &log),
		recordingFilter("post-0b", 0, PhasePost, &log),
	)

	ex := newExchange(http.MethodGet, "/x")
	chain.RunPre(ex)
	assert.Equal(t, []string{"pre-0", "pre-1"}, log)

	log = nil
	chain.RunPost(ex)
	assert.Equal(t, []string{"post-0a", "post-0b", "post-2"}, log)

	names := make([]string, 0)
	for _, d := range chain.Descriptors() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"pre-0", "pre-1", "post-0a", "post-0b", "post-2"}, names)
}

func TestChain_IsolatesFailures(t *testing.T) {
	var log []string
	chain := NewChain(
		Descriptor{Name: "panics", Order: 0, Phase: PhasePost, Action: func(*Exchange) error { panic("boom") }},
		Descriptor{Name: "errors", Order: 1, Phase: PhasePost, Action: func(*Exchange) error { return errors.New("nope") }},
		recordingFilter("after", 2, PhasePost, &log),
	)

	ex := newExchange(http.MethodGet, "/x")
	ex.Status = http.StatusTeapot
	assert.NotPanics(t, func() { chain.RunPost(ex) })
	assert.Equal(t, []string{"after"}, log)
	assert.Equal(t, http.StatusTeapot, ex.Status)
}

func TestChain_Condition(t *testing.T) {
	var log []string
	d := recordingFilter("only-get", 0, PhasePost, &log)
	d.Condition = func(ex *Exchange) bool { return ex.Request.Method == http.MethodGet }
	chain := NewChain(d)

	chain.RunPost(newExchange(http.MethodPost, "/x"))
	assert.Empty(t, log)
	chain.RunPost(newExchange(http.MethodGet, "/x"))
	assert.Equal(t, []string{"only-get"}, log)
}

func TestNilChain(t *testing.T) {
	var chain *Chain
	assert.NotPanics(t, func() {
		chain.RunPre(newExchange(http.MethodGet, "/"))
		chain.RunPost(newExchange(http.MethodGet, "/"))
	})
	assert.Nil(t, chain.Descriptors())
}

func TestDeviceTagger(t *testing.T) {
	tests := []struct {
		userAgent string
		want      string
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", DeviceMobile},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8)", DeviceMobile},
		{"Mozilla/5.0 (X11; Linux x86_64) Mobile Safari", DeviceMobile},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", DeviceDesktop},
		{"", DeviceDesktop},
	}

	tagger := NewChain(DeviceTagger(0))
	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.userAgent, func(t *testing.T) {
			ex := newExchange(http.MethodGet, "/")
			ex.Request.Header.Set("User-Agent", tt.userAgent)
			tagger.RunPre(ex)

			assert.Equal(t, tt.want, ex.Request.Header.Get(HeaderDeviceType))
			assert.Equal(t, tt.want, ex.ResponseHeader.Get(HeaderDeviceDetected))
		})
	}
}

func TestTiming(t *testing.T) {
	received := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	now := received.Add(1500 * time.Millisecond)
	chain := NewChain(Timing(0, func() time.Time { return now }))

	ex := newExchange(http.MethodGet, "/restaurant/api/orders")
	ex.Received = received
	ex.Status = http.StatusBadGateway
	chain.RunPost(ex)

	assert.Equal(t, "1500ms", ex.ResponseHeader.Get(HeaderResponseTime))
}

func TestTiming_NeverNegative(t *testing.T) {
	received := time.Now()
	chain := NewChain(Timing(0, func() time.Time { return received.Add(-time.Second) }))

	ex := newExchange(http.MethodGet, "/")
	ex.Received = received
	chain.RunPost(ex)

	value := ex.ResponseHeader.Get(HeaderResponseTime)
	require.True(t, strings.HasSuffix(value, "ms"))
	n, err := strconv.Atoi(strings.TrimSuffix(value, "ms"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)
}

func TestLastModified(t *testing.T) {
	cond, err := ExprCondition(`Method == "GET" and Path matches "/users"`)
	require.NoError(t, err)

	fixed := time.Date(2026, 10, 16, 9, 30, 0, 0, time.FixedZone("EEST", 3*3600))
	chain := NewChain(LastModified(1, cond, func() time.Time { return fixed }))

	get := newExchange(http.MethodGet, "/restaurant/api/users/clients")
	chain.RunPost(get)
	assert.Equal(t, "Fri, 16 Oct 2026 06:30:00 GMT", get.ResponseHeader.Get("Last-Modified"))

	post := newExchange(http.MethodPost, "/restaurant/api/users/create")
	chain.RunPost(post)
	assert.Empty(t, post.ResponseHeader.Get("Last-Modified"))

	other := newExchange(http.MethodGet, "/restaurant/api/dishes")
	chain.RunPost(other)
	assert.Empty(t, other.ResponseHeader.Get("Last-Modified"))
}

func TestExprCondition(t *testing.T) {
	cond, err := ExprCondition("")
	require.NoError(t, err)
	assert.Nil(t, cond)

	_, err = ExprCondition("Method ==")
	require.Error(t, err)

	cond, err = ExprCondition(`Route == "orders"`)
	require.NoError(t, err)
	ex := newExchange(http.MethodGet, "/")
	ex.RouteID = "orders"
	assert.True(t, cond(ex))
}

func TestRegion(t *testing.T) {
	ex := newExchange(http.MethodGet, "/")
	NewChain(Region(2, "EU-RO-Brasov-Node1")).RunPost(ex)
	assert.Equal(t, "EU-RO-Brasov-Node1", ex.ResponseHeader.Get(HeaderServerRegion))

	empty := newExchange(http.MethodGet, "/")
	NewChain(Region(2, "")).RunPost(empty)
	assert.Empty(t, empty.ResponseHeader.Get(HeaderServerRegion))
}

func TestBuild(t *testing.T) {
	cfg := config.FiltersConfig{
		Device: config.FilterToggle{Enabled: true, Order: 0},
		Timing: config.FilterToggle{Enabled: true, Order: 0},
		LastModified: config.LastModifiedFilterConfig{
			FilterToggle: config.FilterToggle{Enabled: true, Order: 1},
			When:         `Method == "GET" and Path matches "/users"`,
		},
		Region: config.RegionFilterConfig{
			FilterToggle: config.FilterToggle{Enabled: true, Order: 2},
			Name:         "EU-RO-Brasov-Node1",
		},
	}

	chain, err := Build(cfg)
	require.NoError(t, err)

	var names []string
	for _, d := range chain.Descriptors() {
		names = append(names, d.Phase.String()+":"+d.Name)
	}
	assert.Equal(t, []string{"pre:device", "post:timing", "post:last-modified", "post:region"}, names)

	cfg.Timing.Enabled = false
	cfg.Device.Enabled = false
	chain, err = Build(cfg)
	require.NoError(t, err)
	assert.Len(t, chain.Descriptors(), 2)

	cfg.LastModified.When = "Path matches"
	_, err = Build(cfg)
	require.Error(t, err)
}
