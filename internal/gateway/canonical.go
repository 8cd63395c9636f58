package gateway

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalPath returns the path the guard, the route table and the rewrite all
// see for u. Repeated slashes collapse and a trailing slash is kept. Paths with
// "." or ".." segments, or with an encoded "/" or "\", are rejected with
// ErrBadRequestPath: backends would resolve them to a different resource than
// the one that was authorized.
func CanonicalPath(u *url.URL) (string, error) {
	escaped := strings.ToLower(u.EscapedPath())
	if strings.Contains(escaped, "%2f") || strings.Contains(escaped, "%5c") {
		return "", fmt.Errorf("%w: encoded path separator", ErrBadRequestPath)
	}
	return canonicalize(u.Path)
}

func canonicalize(p string) (string, error) {
	if strings.Contains(p, `\`) {
		return "", fmt.Errorf("%w: backslash in path", ErrBadRequestPath)
	}
	segments := splitPath(p)
	for _, s := range segments {
		if s == "." || s == ".." {
			return "", fmt.Errorf("%w: dot segment", ErrBadRequestPath)
		}
	}
	out := "/" + strings.Join(segments, "/")
	if len(segments) > 0 && strings.HasSuffix(p, "/") {
		out += "/"
	}
	return out, nil
}
