package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const defaultConfig = `
repository_url:	file:///repo
`

func checkValue(t *testing.T, fieldname string, val string, expected string) {
	if val != expected {
		t.Fatalf("Error parsing %s, expected '%v' got '%v'", fieldname, expected, val)
	}
}

func TestValidConfig(t *testing.T) {
	cfg := loadOrFail(t, defaultConfig)
	checkValue(t, "RepositoryURL", cfg.RepositoryURL, "file:///repo")
	checkValue(t, "DefaultEOLStyle", cfg.DefaultEOLStyle, "")
	assert.Equal(t, DefaultWorkerPoolSize, cfg.WorkerPoolSize)
	assert.Empty(t, cfg.DefaultKeywords)
}

func TestEmptyConfig(t *testing.T) {
	cfg := loadOrFail(t, "")
	checkValue(t, "RepositoryURL", cfg.RepositoryURL, "")
	assert.Equal(t, DefaultWorkerPoolSize, cfg.WorkerPoolSize)
	assert.NotEmpty(t, cfg.DiffCommand)
	assert.NotEmpty(t, cfg.PatchCommand)
}

func TestEOLStyleAccepted(t *testing.T) {
	const cfgString = `
default_eol_style: CRLF
`
	cfg := loadOrFail(t, cfgString)
	checkValue(t, "DefaultEOLStyle", cfg.DefaultEOLStyle, "CRLF")
}

func TestEOLStyleRejected(t *testing.T) {
	ensureFail(t, "default_eol_style: bogus", "eol style")
}

func TestKeywordsAccepted(t *testing.T) {
	const cfgString = `
default_keywords:
- Revision
- Date
`
	cfg := loadOrFail(t, cfgString)
	assert.Equal(t, []string{"Revision", "Date"}, cfg.DefaultKeywords)
}

func TestKeywordsRejected(t *testing.T) {
	ensureFail(t, "default_keywords: [NotAKeyword]", "keyword")
}

func TestWorkerPoolSizeRejected(t *testing.T) {
	ensureFail(t, "worker_pool_size: -1", "worker pool size")
}

func TestCustomToolCommands(t *testing.T) {
	const cfgString = `
diff_command: "mydiff {old} {new}"
patch_command: "mypatch {target}"
`
	cfg := loadOrFail(t, cfgString)
	checkValue(t, "DiffCommand", cfg.DiffCommand, "mydiff {old} {new}")
	checkValue(t, "PatchCommand", cfg.PatchCommand, "mypatch {target}")
}

func ensureFail(t *testing.T, cfgString string, desc string) {
	_, err := Unmarshal([]byte(cfgString))
	if err == nil {
		t.Fatalf("Expected config err not found: %s", desc)
	}
	t.Logf("Config err: %v", err.Error())
}

func loadOrFail(t *testing.T, cfgString string) *Config {
	cfg, err := Unmarshal([]byte(cfgString))
	if err != nil {
		t.Fatalf("Failed to read config: %v", err.Error())
	}
	return cfg
}
