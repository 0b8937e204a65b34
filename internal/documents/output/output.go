// Package output delivers rendered documents: saved to disk, streamed as a
// download, or parked behind a short-lived preview handle.
package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/engine"
)

// DefaultPreviewTTL is how long a preview handle stays valid.
const DefaultPreviewTTL = 60 * time.Second

// Delivery errors.
var (
	ErrPreviewNotFound    = errors.New("output: preview not found or expired")
	ErrPreviewUnsupported = errors.New("output: preview delivery not configured")
	ErrSaveUnsupported    = errors.New("output: save delivery not configured")
)

// Saver persists or streams an artifact under its file name.
type Saver interface {
	Save(ctx context.Context, a engine.Artifact) error
}

// PreviewStore keeps artifacts behind expiring handles.
type PreviewStore interface {
	Put(ctx context.Context, a engine.Artifact) (engine.Preview, error)
	Get(ctx context.Context, id string) (engine.Artifact, error)
}

// Delivery combines a saver and a preview store into an engine.Delivery.
type Delivery struct {
	Saver    Saver
	Previews PreviewStore
}

// Save implements engine.Delivery.
func (d Delivery) Save(ctx context.Context, a engine.Artifact) error {
	if d.Saver == nil {
		return ErrSaveUnsupported
	}
	return d.Saver.Save(ctx, a)
}

// Preview implements engine.Delivery.
func (d Delivery) Preview(ctx context.Context, a engine.Artifact) (engine.Preview, error) {
	if d.Previews == nil {
		return engine.Preview{}, ErrPreviewUnsupported
	}
	return d.Previews.Put(ctx, a)
}

// DirStore writes artifacts into a directory.
type DirStore struct {
	dir string
}

// NewDirStore returns a store rooted at dir. An empty dir uses the system temp directory.
func NewDirStore(dir string) *DirStore {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "odyssey-documents")
	}
	return &DirStore{dir: dir}
}

// Dir returns the storage directory.
func (s *DirStore) Dir() string { return s.dir }

// Path returns where an artifact with name is stored.
func (s *DirStore) Path(name string) string { return filepath.Join(s.dir, filepath.Base(name)) }

// Save writes a to a temporary file and renames it into place, so readers
// never observe a partial document.
func (s *DirStore) Save(_ context.Context, a engine.Artifact) error {
	if len(a.Data) == 0 {
		return fmt.Errorf("output: refusing to save empty artifact %q", a.FileName)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("output: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".render-*.tmp")
	if err != nil {
		return fmt.Errorf("output: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(a.Data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("output: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("output: close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("output: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(a.FileName)); err != nil {
		return fmt.Errorf("output: rename: %w", err)
	}
	return nil
}

// Prune removes stored PDFs last modified before cutoff and returns how many
// were removed. A missing directory prunes nothing.
func (s *DirStore) Prune(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("output: read dir: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("output: stat %s: %w", entry.Name(), err)
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("output: remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// HTTPDownload streams an artifact as an attachment.
type HTTPDownload struct {
	W http.ResponseWriter
}

// Save implements Saver.
func (d HTTPDownload) Save(_ context.Context, a engine.Artifact) error {
	WriteArtifact(d.W, a, "attachment")
	return nil
}

// WriteArtifact writes a as a PDF response with the given disposition.
func WriteArtifact(w http.ResponseWriter, a engine.Artifact, disposition string) {
	w.Header().Set("Content-Type", engine.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, a.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("X-Document-Pages", strconv.Itoa(a.Pages))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

func previewURL(prefix, id string) string {
	if prefix == "" {
		return ""
	}
	return strings.TrimRight(prefix, "/") + "/" + id
}
