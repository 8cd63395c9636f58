package iam

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeOracle returns canned bindings or an error and records calls.
type fakeOracle struct {
	mu       sync.Mutex
	bindings []Binding
	err      error
	block    bool
	panicMsg string
	calls    int
	tokens   []AccessToken
}

func (f *fakeOracle) GetBindings(ctx context.Context, token AccessToken) ([]Binding, error) {
	f.mu.Lock()
	f.calls++
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.bindings, f.err
}

type countingRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (c *countingRecorder) IncRoleFallback(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reasons = append(c.reasons, reason)
}

var testToken = AccessToken{Value: "ya29.token", Expiry: time.Now().Add(time.Hour)}

func TestRoleResolver_OracleBindings(t *testing.T) {
	oracle := &fakeOracle{bindings: []Binding{
		{Role: "roles/owner", Members: []string{"user:owner@example.com"}},
		{Role: "roles/editor", Members: []string{"user:editor@example.com", "group:staff@example.com"}},
		{Role: "roles/viewer", Members: []string{"user:viewer@example.com", "user:owner@example.com"}},
		{Role: "roles/billing.admin", Members: []string{"user:billing@example.com"}},
	}}

	tests := []struct {
		name  string
		email string
		want  []string
	}{
		{name: "owner maps to ADMIN", email: "owner@example.com", want: []string{"ADMIN", "CLIENT"}},
		{name: "editor maps to ADMIN", email: "editor@example.com", want: []string{"ADMIN"}},
		{name: "viewer maps to CLIENT", email: "viewer@example.com", want: []string{"CLIENT"}},
		{name: "unknown role maps to CLIENT", email: "billing@example.com", want: []string{"CLIENT"}},
		{name: "no binding yields CLIENT", email: "stranger@example.com", want: []string{"CLIENT"}},
		{name: "member match ignores case", email: "Owner@Example.com", want: []string{"ADMIN", "CLIENT"}},
	}

	resolver := NewRoleResolver(ResolverOptions{Oracle: oracle, OracleTimeout: time.Second})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.Resolve(context.Background(), Identity{Subject: "s", Email: tt.email}, testToken)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestRoleResolver_PrivilegedAllowList(t *testing.T) {
	resolver := NewRoleResolver(ResolverOptions{
		Oracle:           &fakeOracle{},
		PrivilegedEmails: []string{"Chef@Example.com"},
	})

	got := resolver.Resolve(context.Background(), Identity{Subject: "s", Email: "chef@example.com"}, testToken)
	assert.Contains(t, got, AuthorityAdmin)
}

func TestRoleResolver_ClaimAuthoritiesAreKept(t *testing.T) {
	resolver := NewRoleResolver(ResolverOptions{Oracle: &fakeOracle{}})

	got := resolver.Resolve(context.Background(), Identity{
		Subject:     "s",
		Email:       "ana@example.com",
		Authorities: []string{"ROLE_KITCHEN"},
	}, testToken)
	assert.ElementsMatch(t, []string{"KITCHEN", "CLIENT"}, got)
}

func TestRoleResolver_NeverFails(t *testing.T) {
	tests := []struct {
		name       string
		oracle     *fakeOracle
		wantReason string
	}{
		{name: "oracle error", oracle: &fakeOracle{err: errors.New("403 forbidden")}, wantReason: FallbackOracleError},
		{name: "oracle timeout", oracle: &fakeOracle{block: true}, wantReason: FallbackOracleError},
		{name: "oracle panic", oracle: &fakeOracle{panicMsg: "boom"}, wantReason: FallbackOracleError},
		{name: "no matching binding", oracle: &fakeOracle{}, wantReason: FallbackNoBinding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &countingRecorder{}
			resolver := NewRoleResolver(ResolverOptions{
				Oracle:        tt.oracle,
				OracleTimeout: 20 * time.Millisecond,
				Recorder:      recorder,
			})

			start := time.Now()
			got := resolver.Resolve(context.Background(), Identity{Subject: "s", Email: "ana@example.com"}, testToken)

			assert.Equal(t, []string{AuthorityClient}, got)
			assert.Equal(t, []string{tt.wantReason}, recorder.reasons)
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}

func TestRoleResolver_NoEmailSkipsOracle(t *testing.T) {
	oracle := &fakeOracle{bindings: []Binding{{Role: "roles/owner", Members: []string{"user:"}}}}
	recorder := &countingRecorder{}
	resolver := NewRoleResolver(ResolverOptions{Oracle: oracle, Recorder: recorder})

	got := resolver.Resolve(context.Background(), Identity{Subject: "s"}, testToken)

	assert.Equal(t, []string{AuthorityClient}, got)
	assert.Zero(t, oracle.calls)
	assert.Equal(t, []string{FallbackNoEmail}, recorder.reasons)
}

func TestRoleResolver_OracleDisabled(t *testing.T) {
	recorder := &countingRecorder{}
	resolver := NewRoleResolver(ResolverOptions{Recorder: recorder, PrivilegedEmails: []string{"chef@example.com"}})

	got := resolver.Resolve(context.Background(), Identity{Subject: "s", Email: "chef@example.com"}, testToken)

	assert.ElementsMatch(t, []string{AuthorityAdmin, AuthorityClient}, got)
	assert.Equal(t, []string{FallbackOracleDisabled}, recorder.reasons)
}

func TestRoleResolver_PassesAccessToken(t *testing.T) {
	oracle := &fakeOracle{}
	resolver := NewRoleResolver(ResolverOptions{Oracle: oracle})

	resolver.Resolve(context.Background(), Identity{Subject: "s", Email: "ana@example.com"}, testToken)

	assert.Equal(t, []AccessToken{testToken}, oracle.tokens)
}

func TestRoleResolver_CustomDefaultAuthority(t *testing.T) {
	resolver := NewRoleResolver(ResolverOptions{DefaultAuthority: "role_guest"})

	got := resolver.Resolve(context.Background(), Identity{Subject: "s"}, AccessToken{})
	assert.Equal(t, []string{"GUEST"}, got)
}
