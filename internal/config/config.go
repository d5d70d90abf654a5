// Package config loads and validates the YAML configuration for a backup
// run: the local root to mirror, the remote container to mirror it into,
// and the retention policy applied on every pass.
package config

// Config is the top-level configuration for one backup run.
type Config struct {
	// LocalRoot is the absolute local path to back up.
	LocalRoot string `yaml:"local_root"`

	// SASURL is the pre-signed (SAS) container URL the engine lists,
	// uploads to, and deletes from.
	SASURL string `yaml:"sas_url"`

	// MinUpdateAge is the upload/tombstone suppression window, in seconds.
	// A path whose remote version was uploaded less than this long ago is
	// neither uploaded again nor tombstoned in this run.
	MinUpdateAge int64 `yaml:"min_update_age"`

	// NumDaily is the number of daily retention buckets to keep, 0-7.
	NumDaily int `yaml:"num_daily"`

	// NumWeekly is the number of weekly retention buckets to keep, 0-4.
	NumWeekly int `yaml:"num_weekly"`

	// NumMonthly is the number of 28-day retention buckets to keep, >= 0.
	NumMonthly int `yaml:"num_monthly"`
}
