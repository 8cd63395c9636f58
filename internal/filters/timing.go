package filters

import (
	"log/slog"
	"strconv"
	"time"
)

// HeaderResponseTime carries the elapsed milliseconds, e.g. "12ms".
const HeaderResponseTime = "X-Response-Time"

// Timing stamps the time since the request was received and logs one line per request.
func Timing(order int, now func() time.Time) Descriptor {
	if now == nil {
		now = time.Now
	}
	return Descriptor{
		Name:  "timing",
		Order: order,
		Phase: PhasePost,
		Action: func(ex *Exchange) error {
			elapsed := now().Sub(ex.Received).Milliseconds()
			if elapsed < 0 {
				elapsed = 0
			}
			ex.ResponseHeader.Set(HeaderResponseTime, strconv.FormatInt(elapsed, 10)+"ms")
			slog.Info("request timing",
				"method", ex.Request.Method,
				"path", ex.Request.URL.Path,
				"route", ex.RouteID,
				"status", ex.Status,
				"elapsed_ms", elapsed,
			)
			return nil
		},
	}
}
