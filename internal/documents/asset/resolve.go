// Package asset resolves and fetches the raster images embedded in documents.
package asset

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnresolvable is returned when a reference cannot be turned into a URL.
var ErrUnresolvable = errors.New("asset: unresolvable reference")

// RefKind classifies an asset reference.
type RefKind int

const (
	// RefAbsolute is a fully qualified http(s), data or file URL.
	RefAbsolute RefKind = iota
	// RefOriginRelative starts with "/" and is served by the application origin.
	RefOriginRelative
	// RefBackendRelative is anything else; it is served by the backend API.
	RefBackendRelative
)

func (k RefKind) String() string {
	switch k {
	case RefAbsolute:
		return "absolute"
	case RefOriginRelative:
		return "origin-relative"
	default:
		return "backend-relative"
	}
}

// Resolver maps references to absolute URLs. It is read-only after construction
// and safe to share between renders.
type Resolver struct {
	// Origin serves root-relative paths such as "/assets/logo.png".
	Origin string
	// APIBase serves backend-relative paths such as "uploads/photo.jpg".
	APIBase string
}

// Classify reports which of the three resolution rules applies to ref.
func (r Resolver) Classify(ref string) RefKind {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "http://"),
		strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "data:"),
		strings.HasPrefix(lower, "file://"):
		return RefAbsolute
	case strings.HasPrefix(ref, "//"):
		return RefAbsolute
	case strings.HasPrefix(ref, "/"):
		return RefOriginRelative
	default:
		return RefBackendRelative
	}
}

// Resolve returns the absolute URL for ref.
func (r Resolver) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", ErrUnresolvable)
	}
	switch r.Classify(ref) {
	case RefAbsolute:
		if strings.HasPrefix(ref, "//") {
			return "https:" + ref, nil
		}
		return ref, nil
	case RefOriginRelative:
		return join(r.Origin, ref, false)
	default:
		return join(r.APIBase, ref, true)
	}
}

// join resolves ref against base. With dirBase the base path is treated as a
// directory so "api/v1" + "uploads/a.png" keeps the "v1" segment.
func join(base, ref string, dirBase bool) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("%w: no base configured for %q", ErrUnresolvable, ref)
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: invalid base %q", ErrUnresolvable, base)
	}
	if dirBase && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	return u.ResolveReference(rel).String(), nil
}
