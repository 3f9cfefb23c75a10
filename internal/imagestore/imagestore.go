// Package imagestore keeps a copy of every accepted upload in a per-person
// folder, named {kind}_{random-suffix}.jpg.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/google/uuid"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
)

// ErrStore wraps failures to save an image.
var ErrStore = errors.New("image store failed")

// JPEGQuality is the quality stored images are encoded at.
const JPEGQuality = 90

// Store saves one document image and returns where it was put.
type Store interface {
	Save(ctx context.Context, personKey string, kind document.Kind, img image.Image) (string, error)
}

// FileName builds {kind}_{suffix}.jpg with a random suffix.
func FileName(kind document.Kind) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%s.jpg", kind, suffix)
}

// validFolder rejects person keys that could escape the storage root.
func validFolder(personKey string) error {
	if personKey == "" || personKey == "." || personKey == ".." || strings.ContainsAny(personKey, `/\`) {
		return fmt.Errorf("%w: invalid folder name %q", ErrStore, personKey)
	}
	return nil
}
