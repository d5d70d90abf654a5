// Package localindex walks a local directory tree and produces the
// path -> version map that the reconciler compares against the remote
// container. It is stateless: no database, no hashing, no orphan
// detection — the remote listing is the sole source of truth, and the
// local state is re-derived from scratch on every pass.
package localindex

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/joelahtinen/blobarchive/internal/blobver"
)

// Index is a mapping of logical path to its single current local version.
type Index struct {
	Paths map[string]blobver.Version
}

// Build walks root and returns the local index. Symlinks are never
// followed (os.Lstat, not os.Stat): a one-way mirror must back up the
// link itself, not its target. Device, socket, and fifo entries are
// skipped silently; regular files, symlinks, and directories are admitted.
func Build(root string) (*Index, error) {
	idx := &Index{Paths: make(map[string]blobver.Version)}

	err := filepath.Walk(root, func(fullPath string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return &IndexingError{Path: fullPath, Err: walkErr}
		}

		mode := info.Mode()
		if !mode.IsRegular() && mode&os.ModeSymlink == 0 && !mode.IsDir() {
			return nil // device/socket/fifo: skip silently
		}

		logicalPath, err := toLogicalPath(root, fullPath)
		if err != nil {
			return err
		}

		version, err := versionFromInfo(info)
		if err != nil {
			return &IndexingError{Path: fullPath, Err: err}
		}

		idx.Paths[logicalPath] = version

		return nil
	})
	if err != nil {
		return nil, err
	}

	return idx, nil
}

// toLogicalPath strips root from fullPath and ensures a leading slash.
func toLogicalPath(root, fullPath string) (string, error) {
	if !utf8.ValidString(fullPath) {
		return "", &IndexingError{Path: fullPath, Err: fmt.Errorf("path is not valid UTF-8")}
	}

	rel := strings.TrimPrefix(fullPath, root)
	if rel == "" || rel[0] != '/' {
		rel = "/" + rel
	}

	return rel, nil
}

// versionFromInfo builds a Version from filesystem metadata, reading
// POSIX owner/group via syscall.Stat_t — Go's os.FileInfo has no direct
// uid/gid accessor.
func versionFromInfo(info os.FileInfo) (blobver.Version, error) {
	modTime := info.ModTime().Unix()
	if modTime < 0 {
		return blobver.Version{}, fmt.Errorf("pre-epoch mtime: %s", info.ModTime())
	}

	fileType := blobver.Regular

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		fileType = blobver.Symlink
	case info.IsDir():
		fileType = blobver.Folder
	}

	size := uint64(0)
	if fileType == blobver.Regular {
		size = uint64(info.Size())
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return blobver.Version{}, fmt.Errorf("unsupported platform: no syscall.Stat_t metadata")
	}

	return blobver.Version{
		ModTime:     modTime,
		UploadTime:  time.Now().Unix(),
		Permissions: uint32(info.Mode().Perm()),
		Size:        size,
		Type:        fileType,
		Owner:       stat.Uid,
		Group:       stat.Gid,
	}, nil
}

// SortedPaths returns the index's logical paths in deterministic order, for
// stable progress reporting and test output.
func (idx *Index) SortedPaths() []string {
	paths := make([]string, 0, len(idx.Paths))
	for p := range idx.Paths {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// IndexingError reports a local filesystem entry that could not be indexed:
// a non-UTF-8 path, an unreadable entry, or a pre-epoch modification time.
type IndexingError struct {
	Path string
	Err  error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("indexing %s: %v", e.Path, e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }

// invariantError would report a local path indexed with other than exactly
// one version. Index.Paths is a map[string]blobver.Version rather than
// map[string][]blobver.Version, so a second write to the same logical path
// overwrites the first instead of accumulating — the invariant holds by
// construction, and this type is intentionally never returned.
type invariantError struct {
	Path   string
	Reason string
}

func (e *invariantError) Error() string {
	return fmt.Sprintf("localindex: invariant violated for %s: %s", e.Path, e.Reason)
}
