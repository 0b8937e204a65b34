package asset

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Defaults applied by NewHTTPLoader.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = 8 << 20
)

// Fetch errors. Loaders swallow them; they only reach the log.
var (
	ErrStatus   = errors.New("asset: unexpected response status")
	ErrTooLarge = errors.New("asset: body exceeds size limit")
	ErrDataURL  = errors.New("asset: malformed data url")
)

// Loader returns embeddable image bytes for a reference. It never fails the
// caller: ok is false whenever the asset is unavailable.
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, bool)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, ref string) ([]byte, bool)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, ref string) ([]byte, bool) { return f(ctx, ref) }

// HTTPLoader fetches assets over HTTP or from data URLs. File URLs are read
// only when enabled with WithFileURLs.
type HTTPLoader struct {
	resolver   Resolver
	client     *http.Client
	maxBytes   int64
	logger     *slog.Logger
	onFallback func(ref string)
	fileURLs   bool
}

// Option configures an HTTPLoader.
type Option func(*HTTPLoader)

// WithClient sets the HTTP client. The client's timeout bounds each fetch.
func WithClient(c *http.Client) Option {
	return func(l *HTTPLoader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithTimeout sets a per-fetch timeout on a private client.
func WithTimeout(d time.Duration) Option {
	return func(l *HTTPLoader) {
		if d > 0 {
			l.client = &http.Client{Timeout: d}
		}
	}
}

// WithMaxBytes caps the accepted body size.
func WithMaxBytes(n int64) Option {
	return func(l *HTTPLoader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *HTTPLoader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithFileURLs lets file:// references read the local filesystem. Only
// trusted callers such as the command line renderer enable it.
func WithFileURLs() Option {
	return func(l *HTTPLoader) { l.fileURLs = true }
}

// WithFallbackHook registers fn to be called every time a load degrades.
func WithFallbackHook(fn func(ref string)) Option {
	return func(l *HTTPLoader) { l.onFallback = fn }
}

// NewHTTPLoader builds a loader over resolver.
func NewHTTPLoader(resolver Resolver, opts ...Option) *HTTPLoader {
	l := &HTTPLoader{
		resolver: resolver,
		client:   &http.Client{Timeout: DefaultTimeout},
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements Loader.
func (l *HTTPLoader) Load(ctx context.Context, ref string) ([]byte, bool) {
	data, err := l.fetch(ctx, ref)
	if err == nil {
		var img Image
		img, err = Decode(data)
		if err == nil {
			return img.Data, true
		}
	}
	l.logger.Warn("asset unavailable, using placeholder",
		slog.String("ref", ref),
		slog.String("kind", l.resolver.Classify(ref).String()),
		slog.Any("error", err))
	if l.onFallback != nil {
		l.onFallback(ref)
	}
	return nil, false
}

func (l *HTTPLoader) fetch(ctx context.Context, ref string) ([]byte, error) {
	target, err := l.resolver.Resolve(ref)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(target)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return parseDataURL(target)
	case strings.HasPrefix(lower, "file://"):
		if !l.fileURLs {
			return nil, fmt.Errorf("%w: file urls are disabled", ErrUnresolvable)
		}
		return l.readFile(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("asset: build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asset: fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d from %s", ErrStatus, resp.StatusCode, target)
	}
	return l.readLimited(resp.Body)
}

func (l *HTTPLoader) readFile(target string) ([]byte, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	f, err := os.Open(u.Path)
	if err != nil {
		return nil, fmt.Errorf("asset: open %s: %w", u.Path, err)
	}
	defer f.Close()
	return l.readLimited(f)
}

func (l *HTTPLoader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("asset: read body: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// parseDataURL decodes an RFC 2397 data URL.
func parseDataURL(u string) ([]byte, error) {
	rest := u[len("data:"):]
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return nil, ErrDataURL
	}
	isBase64 := false
	for _, part := range strings.Split(meta, ";") {
		if strings.EqualFold(strings.TrimSpace(part), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataURL, err)
		}
		return []byte(decoded), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataURL, err)
		}
	}
	return data, nil
}
