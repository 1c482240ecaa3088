package blob

import (
	"context"
	"io"
	"sync"
)

const memoryChunkSize = 64 * 1024

// Memory implements Store with an in-process map, for tests and DEV_MODE.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory creates an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Upload implements Store. The reader is consumed in chunks so progress
// reporting and cancellation behave like a real network transfer.
func (m *Memory) Upload(ctx context.Context, path string, r io.Reader, size int64, progress func(percent int)) error {
	var data []byte
	buf := make([]byte, memoryChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			if progress != nil && size > 0 {
				pct := int(int64(len(data)) * 100 / size)
				if pct > 99 {
					pct = 99
				}
				progress(pct)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.blobs[path] = data
	m.mu.Unlock()

	if progress != nil {
		progress(100)
	}
	return nil
}

// DownloadURL implements Store.
func (m *Memory) DownloadURL(ctx context.Context, path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.blobs[path]; !ok {
		return "", ErrNotFound
	}
	return "memory://" + path, nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[path]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, path)
	return nil
}

// Len reports the number of stored blobs (test helper).
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
