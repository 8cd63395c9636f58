package gateway

import (
	"fmt"
	"path"
	"strings"
)

// Pattern is a compiled path pattern:
//
//	/restaurant/api/orders       literal segments
//	/restaurant/api/users/{id}   {name} or * matches exactly one segment
//	/restaurant/api/orders/**    ** matches zero or more segments
//	/static/*.css                other glob characters match within one segment
//
// A trailing slash on either side is ignored.
type Pattern struct {
	raw      string
	segments []patternSegment
}

type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentSingle
	segmentGlob
	segmentDeep
)

type patternSegment struct {
	kind  segmentKind
	value string
}

// CompilePattern parses a pattern. It must start with "/".
func CompilePattern(raw string) (Pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return Pattern{}, fmt.Errorf("pattern %q must start with /", raw)
	}

	parts := splitPath(raw)
	segments := make([]patternSegment, 0, len(parts))
	for _, part := range parts {
		switch {
		case part == "**":
			segments = append(segments, patternSegment{kind: segmentDeep})
		case part == "*":
			segments = append(segments, patternSegment{kind: segmentSingle})
		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}"):
			if len(part) == 2 {
				return Pattern{}, fmt.Errorf("pattern %q has an empty variable name", raw)
			}
			segments = append(segments, patternSegment{kind: segmentSingle, value: part[1 : len(part)-1]})
		case strings.Contains(part, "**"):
			return Pattern{}, fmt.Errorf("pattern %q: ** must be a whole segment", raw)
		case strings.ContainsAny(part, "*?["):
			if _, err := path.Match(part, ""); err != nil {
				return Pattern{}, fmt.Errorf("pattern %q: %w", raw, err)
			}
			segments = append(segments, patternSegment{kind: segmentGlob, value: part})
		default:
			segments = append(segments, patternSegment{kind: segmentLiteral, value: part})
		}
	}
	return Pattern{raw: raw, segments: segments}, nil
}

// MustCompilePattern is CompilePattern that panics on error.
func MustCompilePattern(raw string) Pattern {
	p, err := CompilePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the pattern as written.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether the request path matches the pattern.
func (p Pattern) Match(requestPath string) bool {
	return matchSegments(p.segments, splitPath(requestPath))
}

func matchSegments(pattern []patternSegment, parts []string) bool {
	for len(pattern) > 0 {
		seg := pattern[0]
		if seg.kind == segmentDeep {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}

		if len(parts) == 0 {
			return false
		}
		switch seg.kind {
		case segmentLiteral:
			if seg.value != parts[0] {
				return false
			}
		case segmentGlob:
			if ok, _ := path.Match(seg.value, parts[0]); !ok {
				return false
			}
		}
		pattern, parts = pattern[1:], parts[1:]
	}
	return len(parts) == 0
}

// splitPath splits a path into its non-empty segments, so "/a//b/" and "/a/b" agree.
func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}
