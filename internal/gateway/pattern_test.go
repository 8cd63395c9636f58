package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/restaurant/api/orders", "/restaurant/api/orders", true},
		{"/restaurant/api/orders", "/restaurant/api/orders/", true},
		{"/restaurant/api/orders", "/restaurant/api/orders/7", false},
		{"/restaurant/api/orders/**", "/restaurant/api/orders", true},
		{"/restaurant/api/orders/**", "/restaurant/api/orders/7/items/3", true},
		{"/restaurant/api/orders/**", "/restaurant/api/ordersx", false},
		{"/restaurant/api/dishes/{id}", "/restaurant/api/dishes/7", true},
		{"/restaurant/api/dishes/{id}", "/restaurant/api/dishes/7/reviews", false},
		{"/restaurant/api/dishes/{id}", "/restaurant/api/dishes", false},
		{"/restaurant/api/*/count", "/restaurant/api/employees/count", true},
		{"/restaurant/**/count", "/restaurant/api/users/employees/count", true},
		{"/restaurant/**/count", "/restaurant/api/users/employees", false},
		{"/static/*.css", "/static/site.css", true},
		{"/static/*.css", "/static/site.js", false},
		{"/**", "/", true},
		{"/", "/", true},
		{"/", "/x", false},
		{"/a/b", "/a//b", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			p, err := CompilePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Match(tt.path))
		})
	}
}

func TestCompilePattern_Errors(t *testing.T) {
	for _, raw := range []string{"restaurant/api", "/a/{}", "/a/b**", "/a/[x"} {
		_, err := CompilePattern(raw)
		assert.Error(t, err, raw)
	}
	assert.Panics(t, func() { MustCompilePattern("nope") })
}
