package config

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

const DefaultWorkerPoolSize = 8

var validEOLStyles = map[string]bool{
	"":       true,
	"native": true,
	"LF":     true,
	"CRLF":   true,
	"CR":     true,
}

var validKeywords = map[string]bool{
	"Revision":            true,
	"Rev":                 true,
	"LastChangedRevision": true,
	"Date":                true,
	"LastChangedDate":     true,
	"Author":              true,
	"LastChangedBy":       true,
	"URL":                 true,
	"HeadURL":             true,
	"Id":                  true,
}

// Config holds everything wcedit needs that isn't part of an
// individual checkout/update/switch invocation: where the external
// diff/patch binaries live, the default translation policy applied to
// newly-versioned files, the concurrency of the install worker pool,
// and the repository this working copy talks to.
type Config struct {
	RepositoryURL   string   `yaml:"repository_url"`
	DiffCommand     string   `yaml:"diff_command"`
	PatchCommand    string   `yaml:"patch_command"`
	DefaultEOLStyle string   `yaml:"default_eol_style"`
	DefaultKeywords []string `yaml:"default_keywords"`
	WorkerPoolSize  int      `yaml:"worker_pool_size"`
}

// Unmarshal parses config, applying defaults for anything left unset.
func Unmarshal(config []byte) (*Config, error) {
	cfg := &Config{
		DiffCommand:    "diff -u {old} {new}",
		PatchCommand:   "patch -p0 --no-backup-if-mismatch -r {reject} {target}",
		WorkerPoolSize: DefaultWorkerPoolSize,
	}
	if err := yaml.Unmarshal(config, cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v. make sure to use 'single quotes' around strings with special characters", err.Error())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile loads and parses a config file from disk.
func LoadConfigFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %v", filename, err.Error())
	}
	cfg, err := LoadConfigString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %v", filename, err.Error())
	}
	return cfg, nil
}

// LoadConfigString parses a config already held in memory.
func LoadConfigString(content []byte) (*Config, error) {
	return Unmarshal(content)
}

func (c *Config) validate() error {
	if !validEOLStyles[c.DefaultEOLStyle] {
		return fmt.Errorf("default_eol_style %q is not one of native/LF/CRLF/CR (or empty for no translation)", c.DefaultEOLStyle)
	}
	for _, kw := range c.DefaultKeywords {
		if !validKeywords[kw] {
			return fmt.Errorf("default_keywords entry %q is not a recognized keyword name", kw)
		}
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker_pool_size must be positive, got %d", c.WorkerPoolSize)
	}
	if strings.TrimSpace(c.DiffCommand) == "" {
		return fmt.Errorf("diff_command must not be empty")
	}
	if strings.TrimSpace(c.PatchCommand) == "" {
		return fmt.Errorf("patch_command must not be empty")
	}
	return nil
}
