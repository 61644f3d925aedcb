package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-ini/ini"
	"github.com/michaelscutari/dupe/internal/digest"
	"github.com/michaelscutari/dupe/internal/scan"
)

// Config holds settings read from an INI file. Zero values mean the key was
// absent and the built-in default applies.
type Config struct {
	Scan   ScanConfig
	Digest DigestConfig
	Report ReportConfig
	Log    LogConfig
}

// ScanConfig is the [scan] section.
type ScanConfig struct {
	Extension       string
	Exclude         []string // directory names; replaces the defaults when set
	ExcludePatterns []string // path regular expressions
	Workers         int
}

// DigestConfig is the [digest] section.
type DigestConfig struct {
	Algorithm string
}

// ReportConfig is the [report] section.
type ReportConfig struct {
	Out       string
	Retention int
	MaxErrors int
}

// LogConfig is the [log] section.
type LogConfig struct {
	Verbose bool
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Extension: scan.DefaultExtension,
		},
		Digest: DigestConfig{
			Algorithm: digest.DefaultAlgorithm,
		},
		Report: ReportConfig{
			Out:       "./data",
			Retention: 5,
		},
	}
}

// Load reads path. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.read(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) read(f *ini.File) error {
	if f.HasSection("scan") {
		section := f.Section("scan")
		if section.HasKey("extension") {
			c.Scan.Extension = strings.TrimPrefix(section.Key("extension").String(), ".")
		}
		if section.HasKey("exclude") {
			c.Scan.Exclude = section.Key("exclude").Strings(",")
		}
		if section.HasKey("exclude_patterns") {
			c.Scan.ExcludePatterns = section.Key("exclude_patterns").Strings(",")
		}
		if section.HasKey("workers") {
			workers, err := section.Key("workers").Int()
			if err != nil {
				return fmt.Errorf("scan.workers: %w", err)
			}
			c.Scan.Workers = workers
		}
	}

	if f.HasSection("digest") {
		section := f.Section("digest")
		if section.HasKey("algorithm") {
			c.Digest.Algorithm = section.Key("algorithm").String()
			if _, err := digest.Lookup(c.Digest.Algorithm); err != nil {
				return fmt.Errorf("digest.algorithm: %w", err)
			}
		}
	}

	if f.HasSection("report") {
		section := f.Section("report")
		if section.HasKey("out") {
			c.Report.Out = section.Key("out").String()
		}
		if section.HasKey("retention") {
			retention, err := section.Key("retention").Int()
			if err != nil {
				return fmt.Errorf("report.retention: %w", err)
			}
			c.Report.Retention = retention
		}
		if section.HasKey("max_errors") {
			maxErrors, err := section.Key("max_errors").Int()
			if err != nil {
				return fmt.Errorf("report.max_errors: %w", err)
			}
			c.Report.MaxErrors = maxErrors
		}
	}

	if f.HasSection("log") {
		section := f.Section("log")
		if section.HasKey("verbose") {
			verbose, err := section.Key("verbose").Bool()
			if err != nil {
				return fmt.Errorf("log.verbose: %w", err)
			}
			c.Log.Verbose = verbose
		}
	}

	return nil
}

// ScanOptions builds scan options from the configuration.
func (c *Config) ScanOptions() (*scan.ScanOptions, error) {
	opts := scan.DefaultOptions().
		WithExtension(c.Scan.Extension).
		WithAlgorithm(c.Digest.Algorithm)
	if c.Scan.Workers > 0 {
		opts.WithWorkers(c.Scan.Workers)
	}
	if len(c.Scan.Exclude) > 0 {
		opts.WithExcludeNames(c.Scan.Exclude...)
	}
	for _, p := range c.Scan.ExcludePatterns {
		if err := opts.AddExcludePattern(p); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	f := ini.Empty()

	scanSection := f.Section("scan")
	scanSection.Key("extension").SetValue(c.Scan.Extension)
	if len(c.Scan.Exclude) > 0 {
		scanSection.Key("exclude").SetValue(strings.Join(c.Scan.Exclude, ","))
	}
	if len(c.Scan.ExcludePatterns) > 0 {
		scanSection.Key("exclude_patterns").SetValue(strings.Join(c.Scan.ExcludePatterns, ","))
	}
	if c.Scan.Workers > 0 {
		scanSection.Key("workers").SetValue(fmt.Sprintf("%d", c.Scan.Workers))
	}

	f.Section("digest").Key("algorithm").SetValue(c.Digest.Algorithm)

	reportSection := f.Section("report")
	reportSection.Key("out").SetValue(c.Report.Out)
	reportSection.Key("retention").SetValue(fmt.Sprintf("%d", c.Report.Retention))
	reportSection.Key("max_errors").SetValue(fmt.Sprintf("%d", c.Report.MaxErrors))

	f.Section("log").Key("verbose").SetValue(fmt.Sprintf("%t", c.Log.Verbose))

	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
