// Package remoteindex parses a container's flat blob listing into the
// path -> versions map the reconciler operates on, paging through
// blobstore.Store.ListBlobs until the listing is exhausted.
package remoteindex

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/joelahtinen/blobarchive/internal/blobstore"
	"github.com/joelahtinen/blobarchive/internal/blobver"
)

// Index is a mapping of logical path to every version observed for it.
// Invariant: at least one version per path; no two versions at the same
// path are Equal.
type Index struct {
	Paths map[string][]blobver.Version
}

// Build lists every blob in store and splits each name on its last '/'
// into (logical path, serialized version).
func Build(ctx context.Context, store blobstore.Store) (*Index, error) {
	idx := &Index{Paths: make(map[string][]blobver.Version)}

	var buildErr error

	err := store.ListBlobs(ctx, func(name string, listErr error) bool {
		if listErr != nil {
			buildErr = listErr

			return false
		}

		path := "/" + name

		lastDelim := strings.LastIndex(path, "/")
		if lastDelim <= 0 || lastDelim+1 >= len(path) {
			buildErr = &blobver.MalformedRemoteError{
				Input: path,
				Err:   fmt.Errorf("missing version delimiter or trailing slash"),
			}

			return false
		}

		logicalPath := path[:lastDelim]
		serialized := path[lastDelim+1:]

		version, parseErr := blobver.Parse(serialized)
		if parseErr != nil {
			buildErr = parseErr

			return false
		}

		idx.Paths[logicalPath] = append(idx.Paths[logicalPath], version)

		return true
	})
	if err != nil {
		return nil, err
	}

	if buildErr != nil {
		return nil, buildErr
	}

	return idx, nil
}

// Newest returns the version with the greatest UploadTime for path. The
// caller must ensure versions is non-empty.
func Newest(versions []blobver.Version) blobver.Version {
	newest := versions[0]

	for _, v := range versions[1:] {
		if newest.Before(v) {
			newest = v
		}
	}

	return newest
}

// SortedPaths returns the index's logical paths in deterministic order.
func (idx *Index) SortedPaths() []string {
	paths := make([]string, 0, len(idx.Paths))
	for p := range idx.Paths {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}
