package config

import (
	"time"

	"mcpdesk/internal/domain"
)

// OutputFormat selects how CLI commands render results.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

const (
	defaultReloadDebounce  = 200 * time.Millisecond
	defaultMetricsAddr     = "127.0.0.1:9464"
	defaultConfigFileName  = "config.yaml"
	defaultAppDirName      = "mcpdesk"
	envPrefix              = "MCPDESK"
	minWatchIntervalSecond = 1
)

// Config is the normalized console configuration.
type Config struct {
	API      APIConfig
	Log      LogConfig
	Output   OutputFormat
	Defaults QueryDefaults
	Cache    CacheConfig
	Watch    WatchConfig
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type LogConfig struct {
	Level string
	JSON  bool
}

// QueryDefaults seed the initial server query.
type QueryDefaults struct {
	PageSize int
	OrderBy  domain.SortField
	OrderDir domain.SortDirection
}

// Query returns the default server query with these settings applied.
func (d QueryDefaults) Query() domain.ServerQuery {
	q := domain.DefaultServerQuery()
	if d.PageSize > 0 {
		q = q.WithPageSize(d.PageSize)
	}
	if d.OrderBy != "" {
		dir := d.OrderDir
		if dir == "" {
			dir = domain.DefaultOrderDir
		}
		q = q.WithSort(d.OrderBy, dir)
	}
	return q
}

type CacheConfig struct {
	Path     string
	Disabled bool
}

type WatchConfig struct {
	Interval        time.Duration
	MetricsAddr     string
	EnableMetrics   bool
	EnableHealthz   bool
	MetricsDumpPath string
}
