package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const defaultConfigFile = "config.ini"

type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Paths       PathsConfig       `mapstructure:"paths"`
	Performance PerformanceConfig `mapstructure:"performance"`
	File        FileConfig        `mapstructure:"file"`
	Templates   TemplatesConfig   `mapstructure:"templates"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Units       UnitsConfig       `mapstructure:"units"`
	Log         LogConfig         `mapstructure:"log"`
}

type APIConfig struct {
	APIKey     string  `mapstructure:"api_key"`
	SecretKey  string  `mapstructure:"secret_key"`
	Timeout    int     `mapstructure:"timeout"`
	MaxRetries int     `mapstructure:"max_retries"`
	RetryDelay int     `mapstructure:"retry_delay"`
	APIURL     string  `mapstructure:"api_url"`
	TokenURL   string  `mapstructure:"token_url"`
	ResultURL  string  `mapstructure:"result_url"`
	QPS        float64 `mapstructure:"qps"`
}

type PathsConfig struct {
	InputFolder     string `mapstructure:"input_folder"`
	OutputFolder    string `mapstructure:"output_folder"`
	TempFolder      string `mapstructure:"temp_folder"`
	TemplateFolder  string `mapstructure:"template_folder"`
	ProcessedRecord string `mapstructure:"processed_record"`
}

type PerformanceConfig struct {
	MaxWorkers   int  `mapstructure:"max_workers"`
	BatchSize    int  `mapstructure:"batch_size"`
	SkipExisting bool `mapstructure:"skip_existing"`
}

type FileConfig struct {
	// Comma separated in the ini file.
	AllowedExtensions string  `mapstructure:"allowed_extensions"`
	ExcelExtension    string  `mapstructure:"excel_extension"`
	MaxFileSizeMB     float64 `mapstructure:"max_file_size_mb"`
}

type TemplatesConfig struct {
	PurchaseOrder string `mapstructure:"purchase_order"`
}

type CatalogConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Comma separated list of elasticsearch nodes.
	Addresses string `mapstructure:"addresses"`
	Index     string `mapstructure:"index"`
}

type UnitsConfig struct {
	// barcode:multiplier:unit, comma separated.
	SpecialBarcodes string `mapstructure:"special_barcodes"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.api_key", "")
	v.SetDefault("api.secret_key", "")
	v.SetDefault("api.timeout", 30)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.retry_delay", 2)
	v.SetDefault("api.api_url", "https://aip.baidubce.com/rest/2.0/ocr/v1/table")
	v.SetDefault("api.token_url", "https://aip.baidubce.com/oauth/2.0/token")
	v.SetDefault("api.result_url", "https://aip.baidubce.com/rest/2.0/solution/v1/form_ocr/get_request_result")
	v.SetDefault("api.qps", 2)

	v.SetDefault("paths.input_folder", "data/input")
	v.SetDefault("paths.output_folder", "data/output")
	v.SetDefault("paths.temp_folder", "data/temp")
	v.SetDefault("paths.template_folder", "templates")
	v.SetDefault("paths.processed_record", "data/processed_files.json")

	v.SetDefault("performance.max_workers", 4)
	v.SetDefault("performance.batch_size", 5)
	v.SetDefault("performance.skip_existing", true)

	v.SetDefault("file.allowed_extensions", ".jpg,.jpeg,.png,.bmp")
	v.SetDefault("file.excel_extension", ".xlsx")
	v.SetDefault("file.max_file_size_mb", 4)

	v.SetDefault("templates.purchase_order", "银豹-采购单模板.xlsx")

	v.SetDefault("catalog.enabled", false)
	v.SetDefault("catalog.addresses", "http://localhost:9200")
	v.SetDefault("catalog.index", "orderocr-products")

	v.SetDefault("units.special_barcodes", "6925019900087:10:瓶")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// LoadConfig reads the ini file at path, writing one populated with defaults if it doesn't exist.  Environment
// variables such as ORDEROCR_API_API_KEY override the file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigFile
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType(configType(path))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create config directory: %w", err)
			}
		}

		if err := v.WriteConfigAs(path); err != nil {
			// Not fatal, we can run on defaults.
			sugar.Warnf("Could not write default config %s: %v", path, err)
		} else {
			sugar.Infof("Created default config %s", path)
		}
	} else if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	v.SetEnvPrefix("ORDEROCR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.API.APIKey == "" || cfg.API.SecretKey == "" {
		sugar.Warnf("API key not set, set api_key and secret_key in [API] of %s", path)
	}

	return &cfg, nil
}

func configType(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	switch ext {
	case "yaml", "yml", "json", "toml":
		return ext
	default:
		return "ini"
	}
}

func (c *Config) validate() error {
	if c.Performance.MaxWorkers < 1 {
		return fmt.Errorf("%w: max_workers must be at least 1", ErrInvalidConfig)
	}

	if c.Performance.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be at least 1", ErrInvalidConfig)
	}

	if c.API.MaxRetries < 1 {
		return fmt.Errorf("%w: max_retries must be at least 1", ErrInvalidConfig)
	}

	if _, err := c.SpecialBarcodes(); err != nil {
		return err
	}

	return nil
}

func (c *Config) AllowedExtensions() []string {
	return splitList(c.File.AllowedExtensions, true)
}

func (c *Config) CatalogAddresses() []string {
	return splitList(c.Catalog.Addresses, false)
}

// SpecialBarcodes parses units.special_barcodes.
func (c *Config) SpecialBarcodes() (map[string]SpecialBarcode, error) {
	special := map[string]SpecialBarcode{}

	for _, item := range splitList(c.Units.SpecialBarcodes, false) {
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: special barcode %q should be barcode:multiplier:unit", ErrInvalidConfig, item)
		}

		multiplier, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || multiplier <= 0 {
			return nil, fmt.Errorf("%w: bad multiplier in special barcode %q", ErrInvalidConfig, item)
		}

		special[strings.TrimSpace(parts[0])] = SpecialBarcode{
			Multiplier: multiplier,
			TargetUnit: strings.TrimSpace(parts[2]),
		}
	}

	return special, nil
}

func (c *Config) TemplatePath() string {
	return filepath.Join(c.Paths.TemplateFolder, c.Templates.PurchaseOrder)
}

func splitList(str string, lower bool) []string {
	ret := []string{}

	for _, item := range strings.Split(str, ",") {
		item = strings.TrimSpace(item)

		if lower {
			item = strings.ToLower(item)
		}

		if len(item) > 0 {
			ret = append(ret, item)
		}
	}

	return ret
}

// ensureDirs creates the working folders the pipeline writes to.
func (c *Config) ensureDirs() error {
	for _, dir := range []string{c.Paths.InputFolder, c.Paths.OutputFolder, c.Paths.TempFolder} {
		if dir == "" {
			continue
		}

		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return nil
}
