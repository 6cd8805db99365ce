package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// MatchAll reports whether a mount path matches every request.
// An unset path, "*" and "/" all mount at the root.
func MatchAll(prefix string) bool {
	return prefix == "" || prefix == "*" || strings.Trim(prefix, "/") == ""
}

// ValidateMount checks a mount path. Segments may be literals, ":name"
// parameters or a final "*name" catch-all.
func ValidateMount(prefix string) error {
	if MatchAll(prefix) {
		return nil
	}
	segs := strings.Split(strings.Trim(prefix, "/"), "/")
	for i, seg := range segs {
		switch {
		case seg == "":
			return fmt.Errorf("mount %q: empty segment", prefix)
		case seg[0] == ':' || seg[0] == '*':
			if len(seg) == 1 {
				return fmt.Errorf("mount %q: wildcard %q needs a name", prefix, seg)
			}
			if seg[0] == '*' && i != len(segs)-1 {
				return fmt.Errorf("mount %q: catch-all %q must be the last segment", prefix, seg)
			}
		case strings.ContainsAny(seg, ":*"):
			return fmt.Errorf("mount %q: wildcard inside segment %q", prefix, seg)
		}
	}
	return nil
}

// MatchPrefix matches path against a mount prefix segment by segment and
// returns the remainder the sub-router should see, plus the values of any
// ":name" or "*name" segments. "/foo" matches "/foo" and "/foo/bar" but not
// "/foobar"; "/users/:uid" matches "/users/5/posts" with uid=5 and rest
// "/posts". A catch-all takes the rest of the path, leading slash included,
// and leaves "/". The remainder always starts with "/".
func MatchPrefix(prefix, path string) (rest string, params httprouter.Params, ok bool) {
	if MatchAll(prefix) {
		return path, nil, true
	}

	rest = path
	for _, seg := range strings.Split(strings.Trim(prefix, "/"), "/") {
		if !strings.HasPrefix(rest, "/") {
			return "", nil, false
		}
		if strings.HasPrefix(seg, "*") {
			params = append(params, httprouter.Param{Key: seg[1:], Value: rest})
			return "/", params, true
		}

		part, next := rest[1:], ""
		if i := strings.IndexByte(part, '/'); i >= 0 {
			part, next = part[:i], part[i:]
		}
		switch {
		case strings.HasPrefix(seg, ":"):
			if part == "" {
				return "", nil, false
			}
			params = append(params, httprouter.Param{Key: seg[1:], Value: part})
		case seg != part:
			return "", nil, false
		}
		rest = next
	}

	if rest == "" {
		rest = "/"
	}
	return rest, params, true
}

type mountParamsKey struct{}

// WithMountParams stores the parameters captured by the mount path.
func WithMountParams(ctx context.Context, params httprouter.Params) context.Context {
	return context.WithValue(ctx, mountParamsKey{}, params)
}

// MountParams returns the parameters captured by the mount path of r.
func MountParams(r *http.Request) httprouter.Params {
	params, _ := r.Context().Value(mountParamsKey{}).(httprouter.Params)
	return params
}
