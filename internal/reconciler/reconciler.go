// Package reconciler is the engine's algorithmic core: it drives the
// upload, tombstone, and retention phases against a local and remote
// index, in that order, in a single sequential pass. Each phase is a
// small, independently testable function built around a handful of
// decision helpers (needsUpload, the bucket math in retention.go) rather
// than one large loop body.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/joelahtinen/blobarchive/internal/blobstore"
	"github.com/joelahtinen/blobarchive/internal/blobver"
	"github.com/joelahtinen/blobarchive/internal/localindex"
	"github.com/joelahtinen/blobarchive/internal/progress"
	"github.com/joelahtinen/blobarchive/internal/remoteindex"
	"github.com/joelahtinen/blobarchive/internal/uploader"
)

const (
	secondsPerDay   = 60 * 60 * 24
	secondsPerWeek  = secondsPerDay * 7
	secondsPerMonth = secondsPerWeek * 4
)

// Policy is the retention policy applied in the retention phase: how many
// daily, weekly, and monthly buckets to keep, and the suppression window
// (in seconds): a path whose remote version was uploaded less than
// MinUpdateAge ago is neither uploaded again nor tombstoned.
type Policy struct {
	MinUpdateAge int64
	NumDaily     int
	NumWeekly    int
	NumMonthly   int
}

// Reconcile runs the upload, tombstone, and retention phases in sequence
// against local and remote, uploading and deleting through store. now is
// the wall-clock time (seconds since epoch) the pass runs at, threaded in
// explicitly so phases are deterministic and testable.
func Reconcile(
	ctx context.Context,
	localRoot string,
	local *localindex.Index,
	remote *remoteindex.Index,
	store blobstore.Store,
	policy Policy,
	now int64,
	logger *slog.Logger,
) error {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("starting upload phase", slog.Int("local_paths", len(local.Paths)))

	if err := uploadPhase(ctx, localRoot, local, remote, store, policy.MinUpdateAge, logger); err != nil {
		return err
	}

	logger.Info("starting tombstone phase", slog.Int("remote_paths", len(remote.Paths)))

	if err := tombstonePhase(ctx, localRoot, local, remote, store, policy.MinUpdateAge, now, logger); err != nil {
		return err
	}

	logger.Info("starting retention phase", slog.Int("remote_paths", len(remote.Paths)))

	if err := retentionPhase(ctx, remote, store, policy, now, logger); err != nil {
		return err
	}

	logger.Info("reconciliation complete")

	return nil
}

// uploadPhase uploads every local path whose current version is not
// already present on the remote, modulo the min-update-age suppression
// window: a remote version younger than min_update_age than the local
// version's upload time is treated as already current.
func uploadPhase(
	ctx context.Context,
	localRoot string,
	local *localindex.Index,
	remote *remoteindex.Index,
	store blobstore.Store,
	minUpdateAge int64,
	logger *slog.Logger,
) error {
	paths := local.SortedPaths()
	reporter := progress.NewReporter(os.Stdout, len(paths))

	for _, path := range paths {
		localVersion := local.Paths[path]

		if needsUpload(localVersion, remote.Paths[path], minUpdateAge) {
			remoteName := path + "/" + localVersion.String()

			if err := uploader.Upload(ctx, store, localRoot, path, remoteName, localVersion); err != nil {
				return fmt.Errorf("reconciler: uploading %s: %w", path, err)
			}

			remote.Paths[path] = append(remote.Paths[path], localVersion)

			logger.Debug("uploaded", slog.String("path", path))
		}

		reporter.Advance()
	}

	reporter.Done()

	return nil
}

// needsUpload reports whether localVersion must be uploaded: true unless
// an existing remote version is content-equal to it, or is within
// minUpdateAge of it (the file was captured very recently and is still
// likely being written).
func needsUpload(localVersion blobver.Version, remoteVersions []blobver.Version, minUpdateAge int64) bool {
	for _, rv := range remoteVersions {
		if localVersion.Equal(rv) {
			return false
		}

		if localVersion.UploadTime > rv.UploadTime && localVersion.UploadTime-rv.UploadTime < minUpdateAge {
			return false
		}
	}

	return true
}

// tombstonePhase writes a Deleted version for every remote path absent
// locally, unless its newest remote version is already within the
// suppression window (the deletion may not yet be durable, or was already
// tombstoned recently).
func tombstonePhase(
	ctx context.Context,
	localRoot string,
	local *localindex.Index,
	remote *remoteindex.Index,
	store blobstore.Store,
	minUpdateAge, now int64,
	logger *slog.Logger,
) error {
	paths := remote.SortedPaths()
	reporter := progress.NewReporter(os.Stdout, len(paths))

	for _, path := range paths {
		versions := remote.Paths[path]
		if len(versions) == 0 {
			logger.Error("malformed remote index: empty version list", slog.String("path", path))
			reporter.Advance()

			continue
		}

		if _, existsLocally := local.Paths[path]; existsLocally {
			reporter.Advance()

			continue
		}

		newest := remoteindex.Newest(versions)

		if now < newest.UploadTime || now-newest.UploadTime < minUpdateAge {
			reporter.Advance()

			continue // recent enough already, nothing to do this pass
		}

		tombstone := blobver.Version{
			ModTime:     0,
			UploadTime:  now,
			Permissions: newest.Permissions,
			Owner:       newest.Owner,
			Group:       newest.Group,
			Type:        blobver.Deleted,
		}

		remoteName := path + "/" + tombstone.String()
		if err := uploader.Upload(ctx, store, localRoot, path, remoteName, tombstone); err != nil {
			return fmt.Errorf("reconciler: tombstoning %s: %w", path, err)
		}

		remote.Paths[path] = append(remote.Paths[path], tombstone)

		logger.Debug("tombstoned", slog.String("path", path))

		reporter.Advance()
	}

	reporter.Done()

	return nil
}

// sortVersionsByUploadTime sorts versions ascending by UploadTime.
func sortVersionsByUploadTime(versions []blobver.Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].UploadTime < versions[j].UploadTime
	})
}
