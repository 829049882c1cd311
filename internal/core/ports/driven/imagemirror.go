package driven

import (
	"context"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

// ImageMirror copies catalog artwork into storage the operator controls.
// Optional: when nil, detail payloads keep only the catalog's image URIs.
type ImageMirror interface {
	// Mirror copies the image and returns the object key it was stored under.
	// Mirroring the same image twice returns the same key.
	Mirror(ctx context.Context, recordID string, index int, img domain.Image) (string, error)
}
