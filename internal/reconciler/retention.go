package reconciler

import (
	"context"
	"log/slog"
	"os"

	"github.com/joelahtinen/blobarchive/internal/blobstore"
	"github.com/joelahtinen/blobarchive/internal/blobver"
	"github.com/joelahtinen/blobarchive/internal/progress"
	"github.com/joelahtinen/blobarchive/internal/remoteindex"
)

// bucket is a retention window of remote time, [start, end]: membersOf
// treats its end as inclusive.
type bucket struct {
	start int64
	end   int64
}

// bucketedVersion pairs a version's index within its path's sorted
// version list with the coverage interval it is responsible for: the span
// of time during which it was the newest version on the remote, shrunk by
// half a day at the end so that a bucket boundary falling mid-day prefers
// the version that was current for the bulk of that day.
type bucketedVersion struct {
	versionIdx int
	start      int64
	end        int64
}

// retentionPhase prunes remote versions not needed to satisfy the
// configured number of daily, weekly, and monthly retention buckets.
func retentionPhase(
	ctx context.Context,
	remote *remoteindex.Index,
	store blobstore.Store,
	policy Policy,
	now int64,
	logger *slog.Logger,
) error {
	buckets := buildBuckets(policy, now)

	paths := remote.SortedPaths()
	reporter := progress.NewReporter(os.Stdout, len(paths))

	for _, path := range paths {
		versions := remote.Paths[path]
		if len(versions) == 0 {
			logger.Error("malformed remote index: empty version list", slog.String("path", path))
			reporter.Advance()

			continue
		}

		sortVersionsByUploadTime(versions)

		survivors := markSurvivors(versions, buckets, now)

		for i, version := range versions {
			if survivors[i] {
				continue
			}

			remoteName := path + "/" + version.String()

			if err := store.DeleteBlob(ctx, remoteName); err != nil {
				return err
			}

			logger.Debug("pruned", slog.String("path", path), slog.String("version", version.String()))
		}

		remote.Paths[path] = keepSurvivors(versions, survivors)

		reporter.Advance()
	}

	reporter.Done()

	return nil
}

// buildBuckets lays out the configured number of daily, weekly, and
// monthly buckets, each counting backward from now: bucket i of a period
// covers [now-(i+1)*period, now-i*period].
func buildBuckets(policy Policy, now int64) []bucket {
	buckets := make([]bucket, 0, policy.NumDaily+policy.NumWeekly+policy.NumMonthly)

	buckets = appendBuckets(buckets, policy.NumDaily, secondsPerDay, now)
	buckets = appendBuckets(buckets, policy.NumWeekly, secondsPerWeek, now)
	buckets = appendBuckets(buckets, policy.NumMonthly, secondsPerMonth, now)

	return buckets
}

func appendBuckets(buckets []bucket, count int, period, now int64) []bucket {
	for i := 0; i < count; i++ {
		buckets = append(buckets, bucket{
			start: now - int64(i+1)*period,
			end:   now - int64(i)*period,
		})
	}

	return buckets
}

// markSurvivors returns, for each index into versions, whether that
// version must be kept. A version survives if it is the only or the
// oldest member of at least one bucket; a version that belongs to no
// bucket, or is never the oldest member of one, is not kept.
func markSurvivors(versions []blobver.Version, buckets []bucket, now int64) []bool {
	bucketed := coverageIntervals(versions, now)

	survive := make([]bool, len(versions))

	for _, b := range buckets {
		members := membersOf(bucketed, b)
		if len(members) == 0 {
			continue
		}

		oldest := members[0]
		for _, m := range members[1:] {
			if bucketed[m].start < bucketed[oldest].start {
				oldest = m
			}
		}

		survive[oldest] = true
	}

	return survive
}

// coverageIntervals computes each version's coverage interval: the span
// during which it was the newest remote version, with the end shrunk by
// half a day so a version is not credited with a bucket it covered only a
// few hours into. The final version's interval runs up to now.
func coverageIntervals(versions []blobver.Version, now int64) []bucketedVersion {
	out := make([]bucketedVersion, len(versions))

	for i, v := range versions {
		var rawEnd int64
		if i+1 < len(versions) {
			rawEnd = versions[i+1].UploadTime
		} else {
			rawEnd = now
		}

		end := rawEnd - secondsPerDay/2
		if end < v.UploadTime+1 {
			end = v.UploadTime + 1
		}

		out[i] = bucketedVersion{versionIdx: i, start: v.UploadTime, end: end}
	}

	return out
}

// membersOf returns the indices of every coverage interval intersecting
// b, under the intersection test
// bucket.start < bucketed.end && bucket.end >= bucketed.start
// (the coverage interval's end is exclusive, the bucket's end inclusive).
func membersOf(bucketed []bucketedVersion, b bucket) []int {
	var members []int

	for _, bv := range bucketed {
		if b.start < bv.end && b.end >= bv.start {
			members = append(members, bv.versionIdx)
		}
	}

	return members
}

// keepSurvivors returns the subsequence of versions whose survive flag is
// true, preserving order.
func keepSurvivors(versions []blobver.Version, survive []bool) []blobver.Version {
	kept := make([]blobver.Version, 0, len(versions))

	for i, v := range versions {
		if survive[i] {
			kept = append(kept, v)
		}
	}

	return kept
}
