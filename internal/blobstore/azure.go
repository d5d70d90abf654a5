package blobstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// AzureStore implements Store against an Azure Blob Storage container
// reached through a pre-signed SAS URL.
type AzureStore struct {
	client *container.Client
	logger *slog.Logger
	sleep  sleepFunc
}

// NewAzureStore builds an AzureStore from a SAS-qualified container URL.
func NewAzureStore(sasURL string, logger *slog.Logger) (*AzureStore, error) {
	client, err := container.NewClientWithNoCredential(sasURL, nil)
	if err != nil {
		return nil, fmt.Errorf("blobstore: opening container: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &AzureStore{client: client, logger: logger}, nil
}

func (s *AzureStore) blockBlobClient(name string) *blockblob.Client {
	return s.client.NewBlockBlobClient(name)
}

// ListBlobs pages through every blob in the container via
// NewListBlobsFlatPager, accumulating until there is no next page.
func (s *AzureStore) ListBlobs(ctx context.Context, yield func(name string, err error) bool) error {
	pager := s.client.NewListBlobsFlatPager(nil)

	for pager.More() {
		var page container.ListBlobsFlatResponse

		err := withRetry(ctx, s.logger, s.sleep, "list blobs", nil, func() error {
			var pageErr error
			page, pageErr = pager.NextPage(ctx)

			return pageErr
		})
		if err != nil {
			return &TransportError{Op: "list", Err: err}
		}

		if page.Segment == nil {
			continue
		}

		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}

			if !yield(*item.Name, nil) {
				return nil
			}
		}
	}

	return nil
}

// PutEmptyBlob uploads body as a single committed block blob.
func (s *AzureStore) PutEmptyBlob(ctx context.Context, name string, body []byte) error {
	client := s.blockBlobClient(name)

	err := withRetry(ctx, s.logger, s.sleep, "put block blob", nil, func() error {
		_, uploadErr := client.Upload(ctx, streaming.NopCloser(bytes.NewReader(body)), nil)

		return uploadErr
	})
	if err != nil {
		return &TransportError{Op: "put", Name: name, Err: err}
	}

	return nil
}

// StageBlock uploads one uncommitted block, identified by a caller-chosen
// id. Azure block ids are base64 strings; the uploader's raw id is encoded
// here so callers stay agnostic of the wire encoding.
func (s *AzureStore) StageBlock(ctx context.Context, name, blockID string, body []byte) error {
	client := s.blockBlobClient(name)
	encodedID := base64.StdEncoding.EncodeToString([]byte(blockID))

	err := withRetry(ctx, s.logger, s.sleep, "stage block", nil, func() error {
		_, stageErr := client.StageBlock(ctx, encodedID, streaming.NopCloser(bytes.NewReader(body)), nil)

		return stageErr
	})
	if err != nil {
		return &TransportError{Op: "stage block", Name: name, Err: err}
	}

	return nil
}

// CommitBlockList commits a blob from previously staged blocks, in the
// given order.
func (s *AzureStore) CommitBlockList(ctx context.Context, name string, blockIDs []string) error {
	client := s.blockBlobClient(name)

	encoded := make([]string, len(blockIDs))
	for i, id := range blockIDs {
		encoded[i] = base64.StdEncoding.EncodeToString([]byte(id))
	}

	err := withRetry(ctx, s.logger, s.sleep, "commit block list", nil, func() error {
		_, commitErr := client.CommitBlockList(ctx, encoded, nil)

		return commitErr
	})
	if err != nil {
		return &TransportError{Op: "commit block list", Name: name, Err: err}
	}

	return nil
}

// DeleteBlob deletes a single blob version. A 404 is treated as permanent
// (nothing to retry) since the retention phase only deletes what it has
// already observed in the listing.
func (s *AzureStore) DeleteBlob(ctx context.Context, name string) error {
	client := s.blockBlobClient(name)

	isPermanent := func(err error) bool {
		return bloberror.HasCode(err, bloberror.BlobNotFound)
	}

	err := withRetry(ctx, s.logger, s.sleep, "delete blob", isPermanent, func() error {
		_, delErr := client.Delete(ctx, nil)

		return delErr
	})

	switch {
	case err == nil:
		return nil
	case isPermanent(err):
		return nil // already gone: nothing left to delete
	default:
		return &TransportError{Op: "delete", Name: name, Err: err}
	}
}
