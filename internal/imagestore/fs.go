package imagestore

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
	"github.com/ironsheep/doc-intake-mcp/internal/imaging"
)

// FS writes images under Root/{personKey}/. The person folder is created on
// first use and reused afterwards.
type FS struct {
	Root string
}

// NewFS creates a filesystem store rooted at root.
func NewFS(root string) *FS {
	return &FS{Root: root}
}

// Save encodes img as JPEG and writes it to a new file.
func (s *FS) Save(ctx context.Context, personKey string, kind document.Kind, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validFolder(personKey); err != nil {
		return "", err
	}

	data, err := imaging.EncodeJPEG(img, JPEGQuality)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStore, err)
	}

	dir := filepath.Join(s.Root, personKey)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("%w: create folder: %w", ErrStore, err)
	}

	path := filepath.Join(dir, FileName(kind))
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("%w: write %s: %w", ErrStore, path, err)
	}
	return path, nil
}
