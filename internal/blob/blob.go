// Package blob defines the remote blob store contract: streamed upload
// with progress reporting, download-URL resolution, and delete-by-path.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no blob exists at the given path.
var ErrNotFound = errors.New("blob not found")

// Store is the remote blob store backing file contents. Paths are
// opaque locators chosen by the uploader (e.g. "files/<uid>/<ts>_name").
type Store interface {
	// Upload streams r to the given path. size is the total byte count,
	// or a negative value when unknown. progress, if non-nil, receives
	// integer percentages in [0,100]; implementations report at most 99
	// until the transfer has fully completed.
	Upload(ctx context.Context, path string, r io.Reader, size int64, progress func(percent int)) error

	// DownloadURL resolves a retrieval URL for an uploaded blob.
	DownloadURL(ctx context.Context, path string) (string, error)

	// Delete removes the blob at path. Callers treat failures as
	// non-fatal; they log and continue.
	Delete(ctx context.Context, path string) error
}
