// Package upload streams local files into the blob store and writes
// the matching file document on completion. Each upload is an explicit
// state machine: Idle -> Uploading -> Completed or Failed, with Cancel
// returning to Idle without a document write.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/skydrive/skydrive/internal/blob"
	"github.com/skydrive/skydrive/internal/identity"
	"github.com/skydrive/skydrive/internal/store"
)

// State is the lifecycle state of one upload.
type State int

const (
	Idle State = iota
	Uploading
	Completed
	Failed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Destination is the drive location a finished upload lands in. It is
// sampled when the blob transfer completes, not when it starts, so a
// user who navigates mid-upload files the result where they ended up.
type Destination struct {
	ParentID string
	Vault    bool
}

// Manager runs uploads. Multiple uploads are independent instances of
// the same state machine.
type Manager struct {
	store   store.DocumentStore
	blobs   blob.Store
	destFn  func() Destination
	nowUnix func() int64

	mu      sync.Mutex
	uploads []*Upload
}

// NewManager creates a Manager. destFn supplies the current destination
// and is consulted once per upload, at blob-transfer completion.
func NewManager(s store.DocumentStore, b blob.Store, destFn func() Destination) *Manager {
	if destFn == nil {
		destFn = func() Destination { return Destination{} }
	}
	return &Manager{
		store:   s,
		blobs:   b,
		destFn:  destFn,
		nowUnix: func() int64 { return time.Now().UnixMilli() },
	}
}

// Start begins uploading r as the given file name. It returns
// immediately; the transfer runs on its own goroutine and the
// destination is sampled from the Manager's destination function when
// the transfer completes.
func (m *Manager) Start(ctx context.Context, user identity.User, name string, r io.Reader, size int64, mimeType string) (*Upload, error) {
	return m.start(ctx, user, name, r, size, mimeType, m.destFn)
}

// StartTo uploads into a fixed destination, bypassing the destination
// sampler. Used by the HTTP surface, where each request names its
// target folder explicitly.
func (m *Manager) StartTo(ctx context.Context, user identity.User, name string, r io.Reader, size int64, mimeType string, dest Destination) (*Upload, error) {
	return m.start(ctx, user, name, r, size, mimeType, func() Destination { return dest })
}

func (m *Manager) start(ctx context.Context, user identity.User, name string, r io.Reader, size int64, mimeType string, destFn func() Destination) (*Upload, error) {
	if user.ID == "" {
		return nil, identity.ErrNotSignedIn
	}

	ctx, cancel := context.WithCancel(ctx)
	u := &Upload{
		Name:   name,
		Size:   size,
		state:  Uploading,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.uploads = append(m.uploads, u)
	m.mu.Unlock()

	path := fmt.Sprintf("files/%s/%d_%s", user.ID, m.nowUnix(), name)
	go m.run(ctx, u, user, name, path, r, size, mimeType, destFn)
	return u, nil
}

func (m *Manager) run(ctx context.Context, u *Upload, user identity.User, name, path string, r io.Reader, size int64, mimeType string, destFn func() Destination) {
	defer close(u.done)
	defer m.forget(u)

	err := m.blobs.Upload(ctx, path, r, size, u.setProgress)
	if err != nil {
		u.fail(err)
		return
	}

	url, err := m.blobs.DownloadURL(ctx, path)
	if err != nil {
		u.fail(fmt.Errorf("resolve download url: %w", err))
		return
	}

	// The transfer is done; progress must read 100 before the document
	// write goes out.
	u.setProgress(100)

	dest := destFn()
	id, err := m.store.Create(ctx, store.Files, map[string]any{
		"name":        name,
		"size":        size,
		"type":        mimeType,
		"downloadURL": url,
		"path":        path,
		"ownerId":     user.ID,
		"ownerName":   user.DisplayName,
		"parentId":    dest.ParentID,
		"isVault":     dest.Vault,
		"starred":     false,
		"trashed":     false,
		"uploadedAt":  store.ServerTimestamp,
	})
	if err != nil {
		u.fail(fmt.Errorf("write file document: %w", err))
		return
	}
	u.complete(id)
}

// forget drops a finished upload from the tracked set so the Manager
// does not grow with every transfer. The caller's handle stays valid
// for state queries.
func (m *Manager) forget(u *Upload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.uploads {
		if cur == u {
			m.uploads = append(m.uploads[:i], m.uploads[i+1:]...)
			return
		}
	}
}

// Active reports whether any upload is still transferring.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.uploads {
		if u.State() == Uploading {
			return true
		}
	}
	return false
}

// Upload is one in-flight or finished transfer.
type Upload struct {
	Name string
	Size int64

	mu       sync.Mutex
	state    State
	progress int
	err      error
	docID    string

	cancel context.CancelFunc
	done   chan struct{}
}

// setProgress records transfer progress. Values never go backwards.
func (u *Upload) setProgress(pct int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state == Uploading && pct > u.progress {
		u.progress = pct
	}
}

func (u *Upload) fail(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if errors.Is(err, context.Canceled) {
		// Cancelled transfers return to Idle; nothing was written.
		u.state = Idle
		u.progress = 0
		return
	}
	u.state = Failed
	u.err = err
}

func (u *Upload) complete(docID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state = Completed
	u.progress = 100
	u.docID = docID
}

// Cancel aborts the transfer best-effort. Already-sent bytes are not
// reclaimed; no document is written.
func (u *Upload) Cancel() {
	u.cancel()
}

// Wait blocks until the upload reaches a terminal state (Completed,
// Failed, or Idle after cancellation).
func (u *Upload) Wait() {
	<-u.done
}

// State returns the current lifecycle state.
func (u *Upload) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Progress returns the last reported percentage in [0,100].
func (u *Upload) Progress() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.progress
}

// Err returns the failure cause when State is Failed.
func (u *Upload) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// DocID returns the created document id when State is Completed.
func (u *Upload) DocID() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.docID
}
