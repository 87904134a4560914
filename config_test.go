package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig is the default config with every folder under a temporary directory.
func testConfig(t *testing.T) *Config {
	t.Helper()

	v := viper.New()
	setDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	dir := t.TempDir()
	cfg.Paths.InputFolder = filepath.Join(dir, "input")
	cfg.Paths.OutputFolder = filepath.Join(dir, "output")
	cfg.Paths.TempFolder = filepath.Join(dir, "temp")
	cfg.Paths.TemplateFolder = filepath.Join(dir, "templates")
	cfg.Paths.ProcessedRecord = filepath.Join(dir, "processed_files.json")
	cfg.API.RetryDelay = 0

	require.NoError(t, cfg.ensureDirs())

	return &cfg
}

func TestLoadConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.ini")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	assert.Equal(t, "data/input", cfg.Paths.InputFolder)
	assert.Equal(t, 4, cfg.Performance.MaxWorkers)
	assert.Equal(t, 5, cfg.Performance.BatchSize)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.Equal(t, 4.0, cfg.File.MaxFileSizeMB)
	assert.Equal(t, []string{".jpg", ".jpeg", ".png", ".bmp"}, cfg.AllowedExtensions())
	assert.Equal(t, filepath.Join("templates", "银豹-采购单模板.xlsx"), cfg.TemplatePath())
	assert.False(t, cfg.Catalog.Enabled)

	// And reading it back gives the same.
	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(`[API]
api_key = key
secret_key = secret

[Performance]
max_workers = 2

[Catalog]
enabled = true
addresses = http://es1:9200, http://es2:9200
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.API.APIKey)
	assert.Equal(t, "secret", cfg.API.SecretKey)
	assert.Equal(t, 2, cfg.Performance.MaxWorkers)
	assert.Equal(t, 5, cfg.Performance.BatchSize)
	assert.True(t, cfg.Catalog.Enabled)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.CatalogAddresses())
}

func TestLoadConfigEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	t.Setenv("ORDEROCR_PERFORMANCE_MAX_WORKERS", "8")
	t.Setenv("ORDEROCR_API_API_KEY", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Performance.MaxWorkers)
	assert.Equal(t, "from-env", cfg.API.APIKey)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("[performance]\nmax_workers = 0\n"), 0644))

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	require.NoError(t, os.WriteFile(path, []byte("[units]\nspecial_barcodes = 6901234567890=abc=瓶\n"), 0644))

	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSpecialBarcodes(t *testing.T) {
	cfg := testConfig(t)

	special, err := cfg.SpecialBarcodes()
	require.NoError(t, err)
	assert.Equal(t, map[string]SpecialBarcode{"6925019900087": {Multiplier: 10, TargetUnit: "瓶"}}, special)

	cfg.Units.SpecialBarcodes = "6901234567890:6:听, 6901234567891:2.5:袋"

	special, err = cfg.SpecialBarcodes()
	require.NoError(t, err)
	assert.Equal(t, map[string]SpecialBarcode{
		"6901234567890": {Multiplier: 6, TargetUnit: "听"},
		"6901234567891": {Multiplier: 2.5, TargetUnit: "袋"},
	}, special)

	cfg.Units.SpecialBarcodes = "6901234567890:0:听"
	_, err = cfg.SpecialBarcodes()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg.Units.SpecialBarcodes = ""
	special, err = cfg.SpecialBarcodes()
	require.NoError(t, err)
	assert.Empty(t, special)
}
