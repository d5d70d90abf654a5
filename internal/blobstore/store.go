// Package blobstore is the object-store driver: the concrete binding of
// the list / put-block-blob / put-block + put-block-list / delete
// contract to Azure Blob Storage, via
// github.com/Azure/azure-sdk-for-go/sdk/storage/azblob.
package blobstore

import (
	"context"
	"fmt"
)

// Store is the object-store contract the reconciler and uploader depend
// on. Defined at the consumer per "accept interfaces, return structs" —
// AzureStore is the only production implementation, but tests substitute
// an in-memory fake.
type Store interface {
	// ListBlobs streams every blob name in the container to yield. A
	// non-nil error passed to yield aborts iteration.
	ListBlobs(ctx context.Context, yield func(name string, err error) bool) error

	// PutEmptyBlob writes body as a single block blob (used for folders,
	// symlink targets, and tombstones — all small, single-shot payloads).
	PutEmptyBlob(ctx context.Context, name string, body []byte) error

	// StageBlock uploads one uncommitted block of a blob under construction.
	StageBlock(ctx context.Context, name, blockID string, body []byte) error

	// CommitBlockList commits a blob from previously staged blocks, in order.
	CommitBlockList(ctx context.Context, name string, blockIDs []string) error

	// DeleteBlob deletes one blob (one version) by its full name.
	DeleteBlob(ctx context.Context, name string) error
}

// TransportError reports a failure to reach, or an error returned by, the
// object store, after retries have been exhausted.
type TransportError struct {
	Op   string
	Name string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("blobstore: %s %s: %v", e.Op, e.Name, e.Err)
	}

	return fmt.Sprintf("blobstore: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
