package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const (
	urlCacheSize = 512
	urlCacheTTL  = 30 * time.Minute
)

// GoogleDrive implements Store on a Google Drive folder. Blob paths are
// stored as file names under a single base folder; path lookups go
// through the Drive search API and resolved ids/URLs are cached in an
// expirable LRU.
type GoogleDrive struct {
	service      *drive.Service
	baseFolderID string

	ids  *expirable.LRU[string, string] // path -> drive file id
	urls *expirable.LRU[string, string] // path -> webContentLink
}

// NewGoogleDrive creates a GoogleDrive store rooted at baseFolderID
// ("root" if empty).
func NewGoogleDrive(service *drive.Service, baseFolderID string) *GoogleDrive {
	if baseFolderID == "" {
		baseFolderID = "root"
	}
	return &GoogleDrive{
		service:      service,
		baseFolderID: baseFolderID,
		ids:          expirable.NewLRU[string, string](urlCacheSize, nil, urlCacheTTL),
		urls:         expirable.NewLRU[string, string](urlCacheSize, nil, urlCacheTTL),
	}
}

// Upload implements Store using the Drive resumable media upload.
func (g *GoogleDrive) Upload(ctx context.Context, path string, r io.Reader, size int64, progress func(percent int)) error {
	f := &drive.File{
		Name:    path,
		Parents: []string{g.baseFolderID},
	}

	call := g.service.Files.Create(f).Fields("id, webContentLink")
	if size > 0 {
		// Resumable uploads need random access to re-send chunks, so a
		// plain stream gets buffered first.
		ra, ok := r.(io.ReaderAt)
		if !ok {
			data, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read blob %q: %w", path, err)
			}
			ra = bytes.NewReader(data)
		}
		call = call.ResumableMedia(ctx, ra, size, "").
			ProgressUpdater(func(current, total int64) {
				if progress == nil || size <= 0 {
					return
				}
				pct := int(current * 100 / size)
				if pct > 99 {
					pct = 99
				}
				progress(pct)
			})
	} else {
		call = call.Media(r)
	}

	created, err := call.Do()
	if err != nil {
		return fmt.Errorf("drive upload %q: %w", path, err)
	}

	g.ids.Add(path, created.Id)
	if created.WebContentLink != "" {
		g.urls.Add(path, created.WebContentLink)
	}
	if progress != nil {
		progress(100)
	}
	return nil
}

// DownloadURL implements Store.
func (g *GoogleDrive) DownloadURL(ctx context.Context, path string) (string, error) {
	if url, ok := g.urls.Get(path); ok {
		return url, nil
	}

	id, err := g.fileID(ctx, path)
	if err != nil {
		return "", err
	}

	f, err := g.service.Files.Get(id).Fields("webContentLink").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive get %q: %w", path, err)
	}
	if f.WebContentLink == "" {
		return "", fmt.Errorf("drive blob %q has no content link", path)
	}
	g.urls.Add(path, f.WebContentLink)
	return f.WebContentLink, nil
}

// Delete implements Store.
func (g *GoogleDrive) Delete(ctx context.Context, path string) error {
	id, err := g.fileID(ctx, path)
	if err != nil {
		return err
	}
	if err := g.service.Files.Delete(id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("drive delete %q: %w", path, err)
	}
	g.ids.Remove(path)
	g.urls.Remove(path)
	return nil
}

// fileID resolves a blob path to its Drive file id.
func (g *GoogleDrive) fileID(ctx context.Context, path string) (string, error) {
	if id, ok := g.ids.Get(path); ok {
		return id, nil
	}

	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeQuery(path), g.baseFolderID)
	r, err := g.service.Files.List().
		Q(q).
		Fields(googleapi.Field("files(id)")).
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive lookup %q: %w", path, err)
	}
	if len(r.Files) == 0 {
		return "", ErrNotFound
	}
	g.ids.Add(path, r.Files[0].Id)
	return r.Files[0].Id, nil
}

// escapeQuery escapes a value for a Drive query string literal.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
