// Package uploader writes a single version's payload to the object store:
// compute the total size, split it into fixed-size blocks, stage each
// block in turn, then commit the ordered block list.
package uploader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/joelahtinen/blobarchive/internal/blobstore"
	"github.com/joelahtinen/blobarchive/internal/blobver"
)

// minBlockSize is the minimum block size: at least 4 MiB per block, or
// enough to keep a blob under 25000 blocks (half of Azure's 50000 max),
// whichever is larger.
const minBlockSize = 4 << 20

// maxBlocksDivisor caps a blob at this many blocks (half of Azure's
// 50000-block ceiling) before the minBlockSize floor takes over.
const maxBlocksDivisor = 25000

// maxBlockIDLen is the maximum length of a block id after the numeric
// prefix and the hash of the remote object name are concatenated.
const maxBlockIDLen = 64

// Upload writes version's payload for logicalPath to store, using
// remoteName as the object name ("<logical_path>/<serialized version>").
// Folder, Deleted, and Symlink versions are small single-shot payloads;
// Regular files are split into blocks and committed.
func Upload(ctx context.Context, store blobstore.Store, localRoot, logicalPath, remoteName string, version blobver.Version) error {
	switch version.Type {
	case blobver.Folder, blobver.Deleted:
		return store.PutEmptyBlob(ctx, remoteName, nil)
	case blobver.Symlink:
		target, err := os.Readlink(localRoot + logicalPath)
		if err != nil {
			return fmt.Errorf("uploader: reading symlink %s: %w", logicalPath, err)
		}

		return store.PutEmptyBlob(ctx, remoteName, []byte(target))
	case blobver.Regular:
		return uploadRegular(ctx, store, localRoot+logicalPath, remoteName, version.Size)
	default:
		return fmt.Errorf("uploader: unknown file type %v", version.Type)
	}
}

// uploadRegular streams localPath to store as a committed block blob.
func uploadRegular(ctx context.Context, store blobstore.Store, localPath, remoteName string, size uint64) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("uploader: opening %s: %w", localPath, err)
	}
	defer file.Close()

	blockSize := blockSizeFor(size)
	numBlocks := numBlocks(size, blockSize)
	idSuffix := blockIDSuffix(remoteName)

	blockIDs := make([]string, 0, numBlocks)
	buf := make([]byte, blockSize)

	for i := range numBlocks {
		n, readErr := io.ReadFull(file, buf)
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return fmt.Errorf("uploader: reading block %d of %s: %w", i, localPath, readErr)
		}

		blockID := blockIDFor(i, idSuffix)

		if err := store.StageBlock(ctx, remoteName, blockID, buf[:n]); err != nil {
			return fmt.Errorf("uploader: staging block %d of %s: %w", i, remoteName, err)
		}

		blockIDs = append(blockIDs, blockID)
	}

	if err := store.CommitBlockList(ctx, remoteName, blockIDs); err != nil {
		return fmt.Errorf("uploader: committing %s: %w", remoteName, err)
	}

	return nil
}

// blockSizeFor picks the block size for a file of the given total size:
// max(4 MiB, ceil(size/25000)), the ceiling keeping any blob under the
// store's 50000-block ceiling with headroom to spare.
func blockSizeFor(size uint64) uint64 {
	blockSize := (size + maxBlocksDivisor - 1) / maxBlocksDivisor
	if blockSize < minBlockSize {
		return minBlockSize
	}

	return blockSize
}

// numBlocks returns the block count needed to cover size bytes at
// blockSize per block, rounding up for a final partial block.
func numBlocks(size, blockSize uint64) uint64 {
	n := size / blockSize
	if size%blockSize != 0 {
		n++
	}

	if n == 0 {
		n = 1 // zero-length regular files still get one (empty) block
	}

	return n
}

// blockIDSuffix disambiguates block ids across different blobs with a
// content-addressed hash of the remote object name.
func blockIDSuffix(remoteName string) string {
	sum := sha256.Sum256([]byte(remoteName))

	return hex.EncodeToString(sum[:])
}

// blockIDFor builds the block id for block index i: a 16-digit zero-padded
// index followed by the hash suffix, truncated to maxBlockIDLen.
func blockIDFor(i uint64, idSuffix string) string {
	id := fmt.Sprintf("%016d%s", i, idSuffix)
	if len(id) > maxBlockIDLen {
		id = id[:maxBlockIDLen]
	}

	return id
}
