// Package mirror maintains a live local replica of the files and
// folders collections. Each snapshot from the document store replaces
// the corresponding collection wholesale, so the replica always matches
// the last delivered server state regardless of how many intermediate
// updates were coalesced away.
package mirror

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/skydrive/skydrive/internal/model"
	"github.com/skydrive/skydrive/internal/store"
)

// Mirror replicates the files and folders collections from a
// DocumentStore. It is safe for concurrent use; readers get copies.
type Mirror struct {
	store store.DocumentStore

	mu      sync.RWMutex
	files   []model.File
	folders []model.Folder
	loaded  map[string]bool

	subs   []store.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OnChange, if set before Start, is invoked after every applied
	// snapshot. It runs on the mirror goroutine; keep it fast.
	OnChange func()
}

// New creates a Mirror over the given store. Call Start to begin
// replication.
func New(s store.DocumentStore) *Mirror {
	return &Mirror{
		store:  s,
		loaded: make(map[string]bool),
	}
}

// Start subscribes to both collections and begins applying snapshots.
// Calling Start on a running mirror restarts it: previous subscriptions
// are cancelled before the new ones are opened.
func (m *Mirror) Start(ctx context.Context) error {
	m.Stop()

	ctx, cancel := context.WithCancel(ctx)

	filesSub, err := m.store.Subscribe(ctx, store.Files, store.FieldUploadedAt, true)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", store.Files, err)
	}
	foldersSub, err := m.store.Subscribe(ctx, store.Folders, store.FieldCreatedAt, true)
	if err != nil {
		filesSub.Cancel()
		cancel()
		return fmt.Errorf("subscribe %s: %w", store.Folders, err)
	}

	m.mu.Lock()
	m.cancel = cancel
	m.subs = []store.Subscription{filesSub, foldersSub}
	m.loaded = make(map[string]bool)
	m.mu.Unlock()

	m.wg.Add(2)
	go m.consume(filesSub)
	go m.consume(foldersSub)
	return nil
}

// Stop cancels the subscriptions and waits for the apply goroutines to
// drain. The replica keeps its last applied state.
func (m *Mirror) Stop() {
	m.mu.Lock()
	subs := m.subs
	cancel := m.cancel
	m.subs = nil
	m.cancel = nil
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Mirror) consume(sub store.Subscription) {
	defer m.wg.Done()
	for snap := range sub.Snapshots() {
		m.apply(snap)
	}
	if err := sub.Err(); err != nil && err != context.Canceled {
		log.Printf("mirror: subscription ended: %v", err)
	}
}

// apply replaces one collection with the snapshot contents.
func (m *Mirror) apply(snap store.Snapshot) {
	m.mu.Lock()
	switch snap.Collection {
	case store.Files:
		files := make([]model.File, 0, len(snap.Docs))
		for _, doc := range snap.Docs {
			files = append(files, model.FileFromFields(doc.ID, doc.Fields))
		}
		m.files = files
	case store.Folders:
		folders := make([]model.Folder, 0, len(snap.Docs))
		for _, doc := range snap.Docs {
			folders = append(folders, model.FolderFromFields(doc.ID, doc.Fields))
		}
		m.folders = folders
	default:
		m.mu.Unlock()
		log.Printf("mirror: ignoring snapshot for unknown collection %q", snap.Collection)
		return
	}
	m.loaded[snap.Collection] = true
	onChange := m.OnChange
	m.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// Files returns a copy of the mirrored files, newest upload first.
func (m *Mirror) Files() []model.File {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.File, len(m.files))
	copy(out, m.files)
	return out
}

// Folders returns a copy of the mirrored folders, newest first.
func (m *Mirror) Folders() []model.Folder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Folder, len(m.folders))
	copy(out, m.folders)
	return out
}

// Folder looks up a mirrored folder by id.
func (m *Mirror) Folder(id string) (model.Folder, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.folders {
		if f.ID == id {
			return f, true
		}
	}
	return model.Folder{}, false
}

// File looks up a mirrored file by id.
func (m *Mirror) File(id string) (model.File, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.files {
		if f.ID == id {
			return f, true
		}
	}
	return model.File{}, false
}

// Loaded reports whether both collections have received at least one
// snapshot since the last Start.
func (m *Mirror) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded[store.Files] && m.loaded[store.Folders]
}
