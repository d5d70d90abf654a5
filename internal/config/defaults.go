package config

// DefaultConfigPath is used when no path is given on the command line.
const DefaultConfigPath = "/etc/azure_blob_backup/config.yaml"

// Default values applied when a key is absent from the YAML document.
const (
	defaultMinUpdateAge = int64(3600)
	defaultNumDaily     = 7
	defaultNumWeekly    = 4
	defaultNumMonthly   = 12
)

// DefaultConfig returns a Config populated with conservative retention
// defaults. It is not a valid standalone config: local_root and sas_url
// have no sensible default and must come from the file.
func DefaultConfig() *Config {
	return &Config{
		MinUpdateAge: defaultMinUpdateAge,
		NumDaily:     defaultNumDaily,
		NumWeekly:    defaultNumWeekly,
		NumMonthly:   defaultNumMonthly,
	}
}
