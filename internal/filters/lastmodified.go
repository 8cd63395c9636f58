package filters

import (
	"net/http"
	"time"
)

// LastModified stamps Last-Modified (RFC 1123, GMT) with the current time on
// exchanges accepted by cond.
func LastModified(order int, cond Condition, now func() time.Time) Descriptor {
	if now == nil {
		now = time.Now
	}
	return Descriptor{
		Name:      "last-modified",
		Order:     order,
		Phase:     PhasePost,
		Condition: cond,
		Action: func(ex *Exchange) error {
			ex.ResponseHeader.Set("Last-Modified", now().UTC().Format(http.TimeFormat))
			return nil
		},
	}
}
