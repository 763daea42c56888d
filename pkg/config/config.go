package config

import (
	"time"
)

// Config is the complete application configuration.
type Config struct {
	// API configures the remote centers backend.
	API APIConfig `koanf:"api" json:"api" yaml:"api"`
	// Cache configures the page cache and its prefetching.
	Cache CacheConfig `koanf:"cache" json:"cache" yaml:"cache"`
	// Query configures paging, the query mode and sort coercion.
	Query QueryConfig `koanf:"query" json:"query" yaml:"query"`
	// Log configures the process logger.
	Log LogConfig `koanf:"log" json:"log" yaml:"log"`
}

// APIConfig contains the backend connection settings.
//
// $ CENTROS_API_BASE_URL=http://localhost:8000/api
type APIConfig struct {
	// BaseURL is the root of the centers API, without a trailing slash.
	BaseURL string `koanf:"base_url" json:"base_url" yaml:"base_url" validate:"required,http_url"`
	// Timeout bounds a single HTTP request, retries included.
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	// RetryCount is the number of retries on transport failures and 5xx/429/408.
	RetryCount int `koanf:"retry_count" json:"retry_count" yaml:"retry_count" validate:"min=0,max=10"`
}

// CacheConfig contains page cache settings.
type CacheConfig struct {
	// TTL is how long a cached page stays fresh.
	TTL time.Duration `koanf:"ttl" json:"ttl" yaml:"ttl" validate:"gt=0"`
	// Capacity bounds the number of cached pages.
	Capacity int `koanf:"capacity" json:"capacity" yaml:"capacity" validate:"min=1"`
	// PrefetchDepth is how many pages after a missed page are fetched ahead.
	// Zero disables prefetching.
	PrefetchDepth int `koanf:"prefetch_depth" json:"prefetch_depth" yaml:"prefetch_depth" validate:"min=0,max=10"`
	// PrefetchConcurrency bounds concurrent prefetch requests.
	PrefetchConcurrency int `koanf:"prefetch_concurrency" json:"prefetch_concurrency" yaml:"prefetch_concurrency" validate:"min=1,max=16"`
}

// QueryConfig contains paging and sorting settings.
type QueryConfig struct {
	// RowsPerPage matches the backend's accepted range.
	RowsPerPage int `koanf:"rows_per_page" json:"rows_per_page" yaml:"rows_per_page" validate:"min=1,max=100"`
	// Mode is "server" (page by page) or "client" (whole dataset in memory).
	Mode string `koanf:"mode" json:"mode" yaml:"mode" validate:"oneof=server client"`
	// FullDatasetSize is the page size requested when loading the whole dataset.
	FullDatasetSize int `koanf:"full_dataset_size" json:"full_dataset_size" yaml:"full_dataset_size" validate:"min=1"`
	// NumericFields are sorted by numeric value instead of text.
	//
	// $ CENTROS_QUERY_NUMERIC_FIELDS=distancia,duracion_min
	NumericFields []string `koanf:"numeric_fields" json:"numeric_fields" yaml:"numeric_fields" validate:"dive,field_name"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error disabled"`
	JSON   bool   `koanf:"json" json:"json" yaml:"json"`
	Source bool   `koanf:"source" json:"source" yaml:"source"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8000/api",
			Timeout:    30 * time.Second,
			RetryCount: 3,
		},
		Cache: CacheConfig{
			TTL:                 5 * time.Minute,
			Capacity:            256,
			PrefetchDepth:       2,
			PrefetchConcurrency: 2,
		},
		Query: QueryConfig{
			RowsPerPage:     10,
			Mode:            "server",
			FullDatasetSize: 100,
			NumericFields:   []string{"distancia", "duracion_min"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceCLI     SourceType = "cli"
)

// Source is one layer of configuration. Sources are applied in the order
// given to Load; later sources override earlier ones.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}
