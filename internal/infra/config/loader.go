package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/infra/telemetry"
)

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("config")}
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.baseURL", domain.DefaultAPIBaseURL)
	v.SetDefault("api.timeoutSeconds", domain.DefaultAPITimeoutSeconds)
	v.SetDefault("log.level", domain.DefaultLogLevel)
	v.SetDefault("log.json", false)
	v.SetDefault("output", string(OutputText))
	v.SetDefault("pageSize", domain.DefaultPageSize)
	v.SetDefault("orderBy", string(domain.DefaultOrderBy))
	v.SetDefault("orderDir", string(domain.DefaultOrderDir))
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.disabled", false)
	v.SetDefault("watch.intervalSeconds", domain.DefaultWatchIntervalSecs)
	v.SetDefault("watch.metricsAddr", defaultMetricsAddr)
	v.SetDefault("watch.enableMetrics", true)
	v.SetDefault("watch.enableHealthz", true)
	v.SetDefault("watch.metricsDumpPath", "")
}

type rawConfig struct {
	API      rawAPIConfig   `mapstructure:"api"`
	Log      rawLogConfig   `mapstructure:"log"`
	Output   string         `mapstructure:"output"`
	PageSize int            `mapstructure:"pageSize"`
	OrderBy  string         `mapstructure:"orderBy"`
	OrderDir string         `mapstructure:"orderDir"`
	Cache    rawCacheConfig `mapstructure:"cache"`
	Watch    rawWatchConfig `mapstructure:"watch"`
}

type rawAPIConfig struct {
	BaseURL        string `mapstructure:"baseURL"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

type rawLogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type rawCacheConfig struct {
	Path     string `mapstructure:"path"`
	Disabled bool   `mapstructure:"disabled"`
}

type rawWatchConfig struct {
	IntervalSeconds int    `mapstructure:"intervalSeconds"`
	MetricsAddr     string `mapstructure:"metricsAddr"`
	EnableMetrics   bool   `mapstructure:"enableMetrics"`
	EnableHealthz   bool   `mapstructure:"enableHealthz"`
	MetricsDumpPath string `mapstructure:"metricsDumpPath"`
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, defaultAppDirName, defaultConfigFileName)
}

// DefaultCachePath returns the per-user view cache location.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, defaultAppDirName, domain.DefaultCacheFileName)
}

// Load reads path, expands ${VAR} references, applies MCPDESK_* overrides and normalizes the
// result. An empty path loads defaults and environment overrides only.
func (l *Loader) Load(ctx context.Context, path string) (Config, error) {
	v := newConfigViper()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		expanded, missing, err := expandConfigEnv(data)
		if err != nil {
			return Config{}, err
		}
		if len(missing) > 0 {
			l.logger.Warn("missing environment variables in config", zap.String("path", path), zap.Strings("missing", missing))
		}
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	cfg, errs := normalizeConfig(raw)
	if len(errs) > 0 {
		return Config{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}

// LoadDefault loads the default config file when it exists and defaults otherwise.
func (l *Loader) LoadDefault(ctx context.Context) (Config, string, error) {
	path := DefaultPath()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			cfg, err := l.Load(ctx, path)
			return cfg, path, err
		}
	}
	cfg, err := l.Load(ctx, "")
	return cfg, "", err
}

func normalizeConfig(raw rawConfig) (Config, []string) {
	var errs []string

	baseURL := strings.TrimRight(strings.TrimSpace(raw.API.BaseURL), "/")
	if u, err := url.Parse(baseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Sprintf("api.baseURL must be an http(s) url, got %q", raw.API.BaseURL))
	}
	if raw.API.TimeoutSeconds <= 0 {
		errs = append(errs, "api.timeoutSeconds must be > 0")
	}
	if _, err := telemetry.ParseLevel(raw.Log.Level); err != nil {
		errs = append(errs, "log.level: "+err.Error())
	}

	output := OutputFormat(strings.ToLower(strings.TrimSpace(raw.Output)))
	switch output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		errs = append(errs, fmt.Sprintf("output must be one of text, json, yaml, got %q", raw.Output))
	}

	if raw.PageSize < 1 || raw.PageSize > domain.MaxPageSize {
		errs = append(errs, fmt.Sprintf("pageSize must be between 1 and %d", domain.MaxPageSize))
	}
	orderBy, ok := domain.ParseSortField(raw.OrderBy)
	if !ok {
		errs = append(errs, fmt.Sprintf("orderBy must be one of created_at, updated_at, name, got %q", raw.OrderBy))
	}
	orderDir, ok := domain.ParseSortDirection(raw.OrderDir)
	if !ok {
		errs = append(errs, fmt.Sprintf("orderDir must be asc or desc, got %q", raw.OrderDir))
	}

	if raw.Watch.IntervalSeconds < minWatchIntervalSecond {
		errs = append(errs, "watch.intervalSeconds must be >= 1")
	}

	cachePath := strings.TrimSpace(raw.Cache.Path)
	if cachePath == "" {
		cachePath = DefaultCachePath()
	}
	metricsAddr := strings.TrimSpace(raw.Watch.MetricsAddr)
	if metricsAddr == "" {
		metricsAddr = defaultMetricsAddr
	}

	return Config{
		API: APIConfig{
			BaseURL: baseURL,
			Timeout: time.Duration(raw.API.TimeoutSeconds) * time.Second,
		},
		Log: LogConfig{
			Level: strings.ToLower(strings.TrimSpace(raw.Log.Level)),
			JSON:  raw.Log.JSON,
		},
		Output: output,
		Defaults: QueryDefaults{
			PageSize: raw.PageSize,
			OrderBy:  orderBy,
			OrderDir: orderDir,
		},
		Cache: CacheConfig{
			Path:     cachePath,
			Disabled: raw.Cache.Disabled,
		},
		Watch: WatchConfig{
			Interval:        time.Duration(raw.Watch.IntervalSeconds) * time.Second,
			MetricsAddr:     metricsAddr,
			EnableMetrics:   raw.Watch.EnableMetrics,
			EnableHealthz:   raw.Watch.EnableHealthz,
			MetricsDumpPath: strings.TrimSpace(raw.Watch.MetricsDumpPath),
		},
	}, errs
}
