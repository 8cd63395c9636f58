package iam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// ErrOracleUnavailable wraps every failure to obtain bindings from the policy oracle.
var ErrOracleUnavailable = errors.New("policy oracle unavailable")

// Binding is one external role and the members holding it.
type Binding struct {
	Role    string   `json:"role"`
	Members []string `json:"members"`
}

// PolicyOracle returns the authoritative role bindings for the configured project.
type PolicyOracle interface {
	GetBindings(ctx context.Context, token AccessToken) ([]Binding, error)
}

// HTTPPolicyOracle queries a Resource Manager style getIamPolicy endpoint
// using the signed-in user's access token.
type HTTPPolicyOracle struct {
	endpoint  string
	projectID string
	base      *http.Client
}

// NewHTTPPolicyOracle creates an oracle client. base may be nil.
func NewHTTPPolicyOracle(endpoint, projectID string, base *http.Client) *HTTPPolicyOracle {
	if base == nil {
		base = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &HTTPPolicyOracle{
		endpoint:  strings.TrimRight(endpoint, "/"),
		projectID: projectID,
		base:      base,
	}
}

type iamPolicyResponse struct {
	Bindings []Binding `json:"bindings"`
}

// GetBindings posts {endpoint}/v1/projects/{project}:getIamPolicy with the access
// token as bearer credential. Any failure is returned wrapped in ErrOracleUnavailable.
func (o *HTTPPolicyOracle) GetBindings(ctx context.Context, token AccessToken) ([]Binding, error) {
	if token.Value == "" {
		return nil, fmt.Errorf("%w: no access token", ErrOracleUnavailable)
	}

	// oauth2.NewClient picks the base client up from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token.Value,
		TokenType:   "Bearer",
		Expiry:      token.Expiry,
	}))

	target := fmt.Sprintf("%s/v1/projects/%s:getIamPolicy", o.endpoint, url.PathEscape(o.projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrOracleUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrOracleUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrOracleUnavailable, resp.StatusCode)
	}

	var policy iamPolicyResponse
	if err := json.Unmarshal(body, &policy); err != nil {
		return nil, fmt.Errorf("%w: decode policy: %v", ErrOracleUnavailable, err)
	}
	return policy.Bindings, nil
}
