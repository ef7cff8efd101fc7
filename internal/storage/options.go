package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/strata/internal/staging"
)

// Options configures a FileWriter.
type Options struct {
	// Dir is the checkpoint destination directory. Created if absent;
	// must be empty.
	Dir string `yaml:"dir"`

	// SingleFilePerGroup writes one shard file per worker group. When
	// false every item gets its own file.
	SingleFilePerGroup bool `yaml:"single_file_per_group"`

	// SyncFiles forces shard files and the metadata file to durable
	// storage before they are considered written. Disabling it removes
	// the crash-consistency guarantee.
	SyncFiles bool `yaml:"sync_files"`

	// ThreadCount is the number of concurrent shard writers.
	ThreadCount int `yaml:"thread_count"`

	// CopyAhead is the in-flight staging budget in bytes for
	// device-backed sources. Zero selects the default budget.
	CopyAhead int64 `yaml:"copy_ahead"`
}

// DefaultOptions returns the options a writer uses unless told otherwise:
// one file per group, durable syncs on, a single writer thread, and the
// default staging budget.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:                dir,
		SingleFilePerGroup: true,
		SyncFiles:          true,
		ThreadCount:        1,
		CopyAhead:          staging.DefaultCopyAhead,
	}
}

// LoadOptions reads options from a yaml file, applying defaults for
// omitted fields.
func LoadOptions(path string) (Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("load options: %w", err)
	}
	opts := DefaultOptions("")
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return Options{}, fmt.Errorf("load options %s: %w", path, err)
	}
	return opts, nil
}

// Validate reports the first configuration problem, if any.
func (o Options) Validate() error {
	if o.Dir == "" {
		return fmt.Errorf("options: dir must be set")
	}
	if o.ThreadCount < 1 {
		return fmt.Errorf("options: thread_count %d, want >= 1", o.ThreadCount)
	}
	if o.CopyAhead < 0 {
		return fmt.Errorf("options: copy_ahead %d, want >= 0", o.CopyAhead)
	}
	return nil
}
