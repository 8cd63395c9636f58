package filters

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-bexpr"
)

// ExprCondition compiles a go-bexpr expression evaluated against the request.
// Available selectors: Method, Path, Host, Query, Route.
//
//	Method == "GET" and Path matches "/users"
//
// An empty expression always matches. Evaluation errors count as no match.
func ExprCondition(expr string) (Condition, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	evaluator, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", expr, err)
	}

	return func(ex *Exchange) bool {
		matches, err := evaluator.Evaluate(exchangeFields(ex))
		if err != nil {
			slog.Debug("filter condition evaluation failed", "expr", expr, "error", err)
			return false
		}
		return matches
	}, nil
}

func exchangeFields(ex *Exchange) map[string]any {
	return map[string]any{
		"Method": ex.Request.Method,
		"Path":   ex.Request.URL.Path,
		"Host":   ex.Request.Host,
		"Query":  ex.Request.URL.RawQuery,
		"Route":  ex.RouteID,
	}
}
