package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// RESOLVER TESTS
// =============================================================================

func TestResolverAbsolutePassesThrough(t *testing.T) {
	r := Resolver{Origin: "https://app.example.com", APIBase: "https://api.example.com/v1"}

	for _, ref := range []string{
		"https://cdn.example.com/logo.png",
		"http://cdn.example.com/logo.png",
		"data:image/png;base64,AAAA",
		"file:///srv/logo.png",
	} {
		got, err := r.Resolve(ref)
		require.NoError(t, err)
		assert.Equal(t, ref, got)
		assert.Equal(t, RefAbsolute, r.Classify(ref))
	}
}

func TestResolverOriginRelativeUsesOrigin(t *testing.T) {
	r := Resolver{Origin: "https://app.example.com/portal/", APIBase: "https://api.example.com/v1"}

	got, err := r.Resolve("/assets/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/assets/logo.png", got)
	assert.Equal(t, RefOriginRelative, r.Classify("/assets/logo.png"))
}

func TestResolverBackendRelativeUsesAPIBase(t *testing.T) {
	r := Resolver{Origin: "https://app.example.com", APIBase: "https://api.example.com/v1"}

	got, err := r.Resolve("uploads/photos/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1/uploads/photos/a.jpg", got)
	assert.Equal(t, RefBackendRelative, r.Classify("uploads/photos/a.jpg"))
}

func TestResolverErrors(t *testing.T) {
	_, err := Resolver{}.Resolve("")
	assert.ErrorIs(t, err, ErrUnresolvable)

	_, err = Resolver{APIBase: "https://api.example.com"}.Resolve("/logo.png")
	assert.ErrorIs(t, err, ErrUnresolvable)

	_, err = Resolver{APIBase: "not a url"}.Resolve("logo.png")
	assert.ErrorIs(t, err, ErrUnresolvable)
}

// =============================================================================
// DECODE TESTS
// =============================================================================

func TestDecodeNormalisesPNG(t *testing.T) {
	img, err := Decode(samplePNG(t))
	require.NoError(t, err)
	assert.Equal(t, "PNG", img.Format)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 2, img.Height)
	_, err = png.Decode(bytes.NewReader(img.Data))
	assert.NoError(t, err)
}

func TestDecodeReducesDeepColourPNG(t *testing.T) {
	deep := image.NewRGBA64(image.Rect(0, 0, 3, 3))
	deep.Set(1, 1, color.RGBA64{R: 0xffff, A: 0xffff})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, deep))

	img, err := Decode(buf.Bytes())
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBAModel, cfg.ColorModel)
}

func TestDecodeRejectsTruncatedImages(t *testing.T) {
	big := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for i := range big.Pix {
		big.Pix[i] = uint8(i * 7)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, big))
	full := buf.Bytes()

	// The header survives, so only a full decode notices the missing pixels.
	_, err := png.DecodeConfig(bytes.NewReader(full[:len(full)/2]))
	require.NoError(t, err)

	_, err = Decode(full[:len(full)/2])
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestDecodeTranscodesBMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))

	img, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "PNG", img.Format)
	assert.Equal(t, 3, img.Width)
	_, err = png.Decode(bytes.NewReader(img.Data))
	assert.NoError(t, err)
}

func TestDecodeRejectsNonImages(t *testing.T) {
	_, err := Decode([]byte("<html><body>not found</body></html>"))
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrNotImage)

	corrupt := samplePNG(t)[:20]
	_, err = Decode(corrupt)
	assert.Error(t, err)
}

// =============================================================================
// HTTP LOADER TESTS
// =============================================================================

func TestHTTPLoaderFetchesBackendRelative(t *testing.T) {
	data := samplePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/uploads/logo.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := NewHTTPLoader(Resolver{APIBase: srv.URL + "/api"}, WithLogger(quietLogger()))
	got, ok := l.Load(context.Background(), "uploads/logo.png")
	require.True(t, ok)
	cfg, err := png.DecodeConfig(bytes.NewReader(got))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Width)
}

func TestHTTPLoaderFallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.png":
			http.NotFound(w, r)
		case "/page.html":
			_, _ = w.Write([]byte("<html></html>"))
		case "/slow.png":
			time.Sleep(200 * time.Millisecond)
		case "/huge.png":
			_, _ = w.Write(bytes.Repeat([]byte{0x89}, 2048))
		}
	}))
	defer srv.Close()

	var fallbacks atomic.Int32
	l := NewHTTPLoader(Resolver{Origin: srv.URL},
		WithLogger(quietLogger()),
		WithTimeout(50*time.Millisecond),
		WithMaxBytes(1024),
		WithFallbackHook(func(string) { fallbacks.Add(1) }),
	)

	for _, ref := range []string{"/missing.png", "/page.html", "/slow.png", "/huge.png", "logo.png", ""} {
		data, ok := l.Load(context.Background(), ref)
		assert.False(t, ok, ref)
		assert.Nil(t, data, ref)
	}
	assert.Equal(t, int32(6), fallbacks.Load())
}

func TestHTTPLoaderUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	l := NewHTTPLoader(Resolver{}, WithLogger(quietLogger()))
	_, ok := l.Load(context.Background(), url+"/logo.png")
	assert.False(t, ok)
}

func TestHTTPLoaderDataAndFileURLs(t *testing.T) {
	data := samplePNG(t)
	l := NewHTTPLoader(Resolver{}, WithLogger(quietLogger()))

	got, ok := l.Load(context.Background(), "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data))
	require.True(t, ok)
	_, err := png.Decode(bytes.NewReader(got))
	assert.NoError(t, err)

	_, ok = l.Load(context.Background(), "data:image/png;base64,@@@")
	assert.False(t, ok)

	path := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	var fallbacks []string
	l = NewHTTPLoader(Resolver{}, WithLogger(quietLogger()), WithFallbackHook(func(ref string) {
		fallbacks = append(fallbacks, ref)
	}))
	_, ok = l.Load(context.Background(), "file://"+path)
	assert.False(t, ok, "file urls must be disabled by default")
	assert.Equal(t, []string{"file://" + path}, fallbacks)

	l = NewHTTPLoader(Resolver{}, WithLogger(quietLogger()), WithFileURLs())
	got, ok = l.Load(context.Background(), "file://"+path)
	require.True(t, ok)
	assert.NotEmpty(t, got)
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestSessionMemoisesWithinRender(t *testing.T) {
	data := samplePNG(t)
	var calls atomic.Int32
	loader := LoaderFunc(func(_ context.Context, ref string) ([]byte, bool) {
		calls.Add(1)
		if ref == "bad" {
			return nil, false
		}
		return data, true
	})

	s := NewSession(loader)
	s.Prefetch(context.Background(), []string{"a", "b", "a", "bad", " "})
	assert.Equal(t, int32(3), calls.Load())

	img, ok := s.Image(context.Background(), "a")
	require.True(t, ok)
	assert.Equal(t, "PNG", img.Format)

	_, ok = s.Image(context.Background(), "bad")
	assert.False(t, ok)
	assert.Equal(t, int32(3), calls.Load())

	fresh := NewSession(loader)
	_, ok = fresh.Image(context.Background(), "a")
	assert.True(t, ok)
	assert.Equal(t, int32(4), calls.Load())
}

func TestSessionWithoutLoader(t *testing.T) {
	_, ok := NewSession(nil).Image(context.Background(), "logo.png")
	assert.False(t, ok)
}
