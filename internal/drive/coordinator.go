// Package drive coordinates user-initiated mutations against the
// document and blob stores. Every operation checks ownership first and
// relies on the mirror for eventual UI reflection; there is no local
// optimistic merge here.
package drive

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/skydrive/skydrive/internal/blob"
	"github.com/skydrive/skydrive/internal/identity"
	"github.com/skydrive/skydrive/internal/model"
	"github.com/skydrive/skydrive/internal/store"
)

var (
	// ErrNotOwner is returned when the current user may not modify the
	// target document. No remote write is issued.
	ErrNotOwner = fmt.Errorf("not the owner of this item")

	// ErrEmptyName rejects blank names before any remote call.
	ErrEmptyName = fmt.Errorf("name must not be empty")

	// ErrFolderNotEmpty blocks deleting a folder that still has
	// children.
	ErrFolderNotEmpty = fmt.Errorf("folder is not empty")

	// ErrMoveCycle blocks moving a folder into itself or a descendant.
	ErrMoveCycle = fmt.Errorf("cannot move a folder into itself")
)

// CanModify reports whether user may mutate a document with the given
// owner. An empty ownerID marks an unowned document, modifiable by
// anyone. This gate is a UX affordance, not a security boundary; the
// remote store enforces its own rules.
func CanModify(ownerID string, user identity.User) bool {
	if ownerID == "" {
		return true
	}
	return user.ID != "" && ownerID == user.ID
}

// Coordinator executes drive mutations.
type Coordinator struct {
	store store.DocumentStore
	blobs blob.Store
}

// New creates a Coordinator over the given stores.
func New(s store.DocumentStore, b blob.Store) *Coordinator {
	return &Coordinator{store: s, blobs: b}
}

// SoftDelete marks a file trashed. Idempotent: trashing an already
// trashed file leaves it trashed.
func (c *Coordinator) SoftDelete(ctx context.Context, user identity.User, file model.File) error {
	if !CanModify(file.OwnerID, user) {
		return ErrNotOwner
	}
	return c.store.Update(ctx, store.Files, file.ID, map[string]any{
		"trashed": true,
	})
}

// Restore clears the trashed flag in place, preserving the document id
// and any external references to it.
func (c *Coordinator) Restore(ctx context.Context, user identity.User, file model.File) error {
	if !CanModify(file.OwnerID, user) {
		return ErrNotOwner
	}
	return c.store.Update(ctx, store.Files, file.ID, map[string]any{
		"trashed": false,
	})
}

// HardDelete removes the file document. The backing blob is deleted
// best-effort first; a blob failure is logged and does not block the
// document delete.
func (c *Coordinator) HardDelete(ctx context.Context, user identity.User, file model.File) error {
	if !CanModify(file.OwnerID, user) {
		return ErrNotOwner
	}
	if file.StoragePath != "" {
		if err := c.blobs.Delete(ctx, file.StoragePath); err != nil {
			log.Printf("drive: delete blob %s: %v", file.StoragePath, err)
		}
	}
	return c.store.Delete(ctx, store.Files, file.ID)
}

// RenameFile updates a file's name and modification timestamp.
func (c *Coordinator) RenameFile(ctx context.Context, user identity.User, file model.File, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyName
	}
	if !CanModify(file.OwnerID, user) {
		return ErrNotOwner
	}
	return c.store.Update(ctx, store.Files, file.ID, map[string]any{
		"name":         newName,
		"lastModified": store.ServerTimestamp,
	})
}

// RenameFolder updates a folder's name.
func (c *Coordinator) RenameFolder(ctx context.Context, user identity.User, folder model.Folder, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyName
	}
	if !CanModify(folder.OwnerID, user) {
		return ErrNotOwner
	}
	return c.store.Update(ctx, store.Folders, folder.ID, map[string]any{
		"name": newName,
	})
}

// ToggleStarFile flips a file's starred flag.
func (c *Coordinator) ToggleStarFile(ctx context.Context, user identity.User, file model.File) error {
	if !CanModify(file.OwnerID, user) {
		return ErrNotOwner
	}
	return c.store.Update(ctx, store.Files, file.ID, map[string]any{
		"starred": !file.Starred,
	})
}

// ToggleStarFolder flips a folder's starred flag.
func (c *Coordinator) ToggleStarFolder(ctx context.Context, user identity.User, folder model.Folder) error {
	if !CanModify(folder.OwnerID, user) {
		return ErrNotOwner
	}
	return c.store.Update(ctx, store.Folders, folder.ID, map[string]any{
		"starred": !folder.Starred,
	})
}

// MoveFile reparents a file. destID empty means root. The upload
// timestamp is refreshed so the moved file surfaces at the top of its
// destination listing.
func (c *Coordinator) MoveFile(ctx context.Context, user identity.User, file model.File, destID string) error {
	if !CanModify(file.OwnerID, user) {
		return ErrNotOwner
	}
	return c.store.Update(ctx, store.Files, file.ID, map[string]any{
		"parentId":   destID,
		"uploadedAt": store.ServerTimestamp,
	})
}

// MoveFolder reparents a folder. The move is refused when destID is the
// folder itself or any of its descendants, walking parent links through
// the supplied folder set.
func (c *Coordinator) MoveFolder(ctx context.Context, user identity.User, folder model.Folder, destID string, all []model.Folder) error {
	if !CanModify(folder.OwnerID, user) {
		return ErrNotOwner
	}
	if destID != "" && createsCycle(folder.ID, destID, all) {
		return ErrMoveCycle
	}
	return c.store.Update(ctx, store.Folders, folder.ID, map[string]any{
		"parentId": destID,
	})
}

// createsCycle reports whether destID is folderID or lies beneath it.
func createsCycle(folderID, destID string, all []model.Folder) bool {
	parents := make(map[string]string, len(all))
	for _, f := range all {
		parents[f.ID] = f.ParentID
	}
	seen := make(map[string]bool)
	for id := destID; id != ""; id = parents[id] {
		if id == folderID {
			return true
		}
		if seen[id] {
			return false // defensive against pre-existing parent loops
		}
		seen[id] = true
	}
	return false
}

// CreateFolder creates a folder owned by user. parentID empty means
// root.
func (c *Coordinator) CreateFolder(ctx context.Context, user identity.User, name, parentID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if user.ID == "" {
		return "", identity.ErrNotSignedIn
	}
	return c.store.Create(ctx, store.Folders, map[string]any{
		"name":      name,
		"ownerId":   user.ID,
		"parentId":  parentID,
		"starred":   false,
		"createdAt": store.ServerTimestamp,
	})
}

// HardDeleteFolder removes an empty folder. Folders with remaining
// child files or folders are refused; callers empty them first.
func (c *Coordinator) HardDeleteFolder(ctx context.Context, user identity.User, folder model.Folder, files []model.File, folders []model.Folder) error {
	if !CanModify(folder.OwnerID, user) {
		return ErrNotOwner
	}
	for _, f := range files {
		if f.ParentID == folder.ID {
			return ErrFolderNotEmpty
		}
	}
	for _, f := range folders {
		if f.ParentID == folder.ID {
			return ErrFolderNotEmpty
		}
	}
	return c.store.Delete(ctx, store.Folders, folder.ID)
}

// BulkRestore restores every file concurrently. Items are independent:
// one failure does not stop the others, nothing is rolled back, and the
// returned error only reports how many items failed.
func (c *Coordinator) BulkRestore(ctx context.Context, user identity.User, files []model.File) error {
	return c.bulk(files, func(f model.File) error {
		return c.Restore(ctx, user, f)
	})
}

// BulkHardDelete hard-deletes every file concurrently, with the same
// independence guarantees as BulkRestore.
func (c *Coordinator) BulkHardDelete(ctx context.Context, user identity.User, files []model.File) error {
	return c.bulk(files, func(f model.File) error {
		return c.HardDelete(ctx, user, f)
	})
}

func (c *Coordinator) bulk(files []model.File, op func(model.File) error) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, f := range files {
		wg.Add(1)
		go func(f model.File) {
			defer wg.Done()
			if err := op(f); err != nil {
				log.Printf("drive: bulk operation on %s: %v", f.ID, err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(f)
	}
	wg.Wait()

	if failed > 0 {
		return fmt.Errorf("%d of %d items failed", failed, len(files))
	}
	return nil
}

// Usage sums the known byte sizes of the user's files, trashed items
// included since they still occupy storage.
func Usage(files []model.File, user identity.User) int64 {
	var total int64
	for _, f := range files {
		if f.OwnerID == user.ID && f.Size > 0 {
			total += f.Size
		}
	}
	return total
}
