package asset

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// prefetchLimit bounds concurrent fetches during Prefetch.
const prefetchLimit = 4

type entry struct {
	img Image
	ok  bool
}

// Session memoises loads for the duration of one render. It is never shared
// between renders.
type Session struct {
	loader Loader
	group  singleflight.Group

	mu    sync.Mutex
	cache map[string]entry
}

// NewSession wraps loader. A nil loader yields a session where every asset is
// unavailable.
func NewSession(loader Loader) *Session {
	return &Session{loader: loader, cache: make(map[string]entry)}
}

// Image returns the decoded asset for ref, loading it on first use.
func (s *Session) Image(ctx context.Context, ref string) (Image, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || s.loader == nil {
		return Image{}, false
	}
	s.mu.Lock()
	if e, ok := s.cache[ref]; ok {
		s.mu.Unlock()
		return e.img, e.ok
	}
	s.mu.Unlock()

	v, _, _ := s.group.Do(ref, func() (any, error) {
		e := entry{}
		if data, ok := s.loader.Load(ctx, ref); ok {
			if img, err := Decode(data); err == nil {
				e = entry{img: img, ok: true}
			}
		}
		s.mu.Lock()
		s.cache[ref] = e
		s.mu.Unlock()
		return e, nil
	})
	e := v.(entry)
	return e.img, e.ok
}

// Prefetch loads refs concurrently so layout never waits on the network.
// Failed loads are remembered as unavailable.
func (s *Session) Prefetch(ctx context.Context, refs []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchLimit)
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		g.Go(func() error {
			s.Image(gctx, ref)
			return nil
		})
	}
	_ = g.Wait()
}
