// Package store defines the remote document store contract: per-collection
// create/update/delete, one-shot reads, and live subscriptions that deliver
// full-collection snapshots.
package store

import (
	"context"
	"errors"
	"time"
)

// Collection names used by the drive.
const (
	Files   = "files"
	Folders = "folders"
)

// Recency fields the drive orders its collections by.
const (
	FieldUploadedAt = "uploadedAt"
	FieldCreatedAt  = "createdAt"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// ServerTimestamp is a sentinel field value. Stores replace it with their
// own clock at write time, so document timestamps are assigned by the
// store rather than the caller.
var ServerTimestamp = serverTimestamp{}

type serverTimestamp struct{}

// Document is a raw remote document: an opaque id plus loosely typed
// fields. Normalization into canonical model types happens downstream,
// in the mirror.
type Document struct {
	ID     string
	Fields map[string]any
}

// Snapshot is the full contents of one collection at one point in time,
// in the store's delivery order.
type Snapshot struct {
	Collection string
	Docs       []Document
}

// Subscription is a live feed of whole-collection snapshots. Snapshots
// may be coalesced under load; the last snapshot delivered always
// reflects the latest state the store observed.
type Subscription interface {
	// Snapshots returns the delivery channel. It is closed after Cancel
	// or on a terminal subscription failure.
	Snapshots() <-chan Snapshot

	// Err reports the terminal failure, if any, after Snapshots is closed.
	Err() error

	// Cancel releases the subscription. Safe to call more than once.
	Cancel()
}

// DocumentStore is the remote document database the drive is built on.
type DocumentStore interface {
	// Subscribe opens a live subscription to a collection ordered by the
	// given field.
	Subscribe(ctx context.Context, collection, orderField string, descending bool) (Subscription, error)

	// List performs a one-shot ordered read of a collection.
	List(ctx context.Context, collection, orderField string, descending bool) ([]Document, error)

	// Create writes a new document and returns its store-assigned id.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Update merges the given fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document. Deleting an absent document is not an
	// error.
	Delete(ctx context.Context, collection, id string) error
}

// ResolveTimestamps copies fields, replacing ServerTimestamp sentinels
// with the given write time. Store implementations call it once per write.
func ResolveTimestamps(fields map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}
