package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/gradient.surface/internal/gradient"
	"github.com/banshee-data/gradient.surface/internal/grid"
	"github.com/banshee-data/gradient.surface/internal/surface"
)

// DefaultConfigPath is the defaults file loaded when no config file is
// named and it exists in the working directory.
const DefaultConfigPath = "config/app.defaults.json"

// Defaults returned by the Get* accessors for unset fields.
const (
	DefaultListen            = ":8090"
	DefaultDBPath            = "gradient-surface.db"
	DefaultExpression        = "x ** 2 + y ** 2"
	DefaultCopyResetDelay    = 2 * time.Second
	DefaultEChartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"
	DefaultMaxChartPoints    = 60
	DefaultHistoryLimit      = 20
	DefaultBuildTimeout      = 10 * time.Second
)

// AppConfig is the server configuration. Every field is optional; the
// Get* methods fill in defaults, so a partial file is safe.
type AppConfig struct {
	Listen         *string `json:"listen,omitempty"`
	DBPath         *string `json:"db_path,omitempty"`
	GradientMethod *string `json:"gradient_method,omitempty"`

	// Sampling domain
	Points *int        `json:"points,omitempty"`
	XRange *grid.Range `json:"x_range,omitempty"`
	YRange *grid.Range `json:"y_range,omitempty"`

	// View
	DefaultExpression *string `json:"default_expression,omitempty"`
	CopyResetDelay    *string `json:"copy_reset_delay,omitempty"` // duration string like "2s"
	InstallCommand    *string `json:"install_command,omitempty"`

	// Rendering
	EChartsAssetsHost *string `json:"echarts_assets_host,omitempty"`
	MaxChartPoints    *int    `json:"max_chart_points,omitempty"`

	HistoryLimit *int    `json:"history_limit,omitempty"`
	BuildTimeout *string `json:"build_timeout,omitempty"` // per request, like "10s"
}

// EmptyAppConfig returns a config with every field unset.
func EmptyAppConfig() *AppConfig {
	return &AppConfig{}
}

// LoadAppConfig loads an AppConfig from a JSON file. The file must have a
// .json extension and be under 1MB.
func LoadAppConfig(path string) (*AppConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAppConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields that are set.
func (c *AppConfig) Validate() error {
	if c.GradientMethod != nil {
		if _, err := gradient.ByName(*c.GradientMethod); err != nil {
			return err
		}
	}
	if c.CopyResetDelay != nil && *c.CopyResetDelay != "" {
		d, err := time.ParseDuration(*c.CopyResetDelay)
		if err != nil {
			return fmt.Errorf("invalid copy_reset_delay '%s': %w", *c.CopyResetDelay, err)
		}
		if d <= 0 {
			return fmt.Errorf("copy_reset_delay must be positive, got %s", d)
		}
	}
	if c.BuildTimeout != nil && *c.BuildTimeout != "" {
		d, err := time.ParseDuration(*c.BuildTimeout)
		if err != nil {
			return fmt.Errorf("invalid build_timeout '%s': %w", *c.BuildTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("build_timeout must be positive, got %s", d)
		}
	}
	if c.MaxChartPoints != nil && *c.MaxChartPoints < 2 {
		return fmt.Errorf("max_chart_points must be at least 2, got %d", *c.MaxChartPoints)
	}
	if c.HistoryLimit != nil && *c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be positive, got %d", *c.HistoryLimit)
	}
	return c.SurfaceConfig().Validate()
}

// GetListen returns the HTTP listen address.
func (c *AppConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetDBPath returns the history database path.
func (c *AppConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

// GetGradientMethod returns the gradient provider name.
func (c *AppConfig) GetGradientMethod() string {
	if c.GradientMethod == nil || *c.GradientMethod == "" {
		return gradient.Default
	}
	return *c.GradientMethod
}

// SurfaceConfig returns the sampling domain, with defaults for unset
// fields.
func (c *AppConfig) SurfaceConfig() surface.Config {
	sc := surface.DefaultConfig()
	if c.Points != nil {
		sc.Points = *c.Points
	}
	if c.XRange != nil {
		sc.XRange = *c.XRange
	}
	if c.YRange != nil {
		sc.YRange = *c.YRange
	}
	return sc
}

// GetDefaultExpression returns the expression shown on first load.
func (c *AppConfig) GetDefaultExpression() string {
	if c.DefaultExpression == nil {
		return DefaultExpression
	}
	return *c.DefaultExpression
}

// GetCopyResetDelay returns how long the copy acknowledgement shows.
func (c *AppConfig) GetCopyResetDelay() time.Duration {
	if c.CopyResetDelay == nil || *c.CopyResetDelay == "" {
		return DefaultCopyResetDelay
	}
	d, err := time.ParseDuration(*c.CopyResetDelay)
	if err != nil || d <= 0 {
		return DefaultCopyResetDelay
	}
	return d
}

// GetInstallCommand returns the command the copy button copies; "" lets
// the view use its own default.
func (c *AppConfig) GetInstallCommand() string {
	if c.InstallCommand == nil {
		return ""
	}
	return *c.InstallCommand
}

// GetEChartsAssetsHost returns where the HTML renderer loads scripts from.
func (c *AppConfig) GetEChartsAssetsHost() string {
	if c.EChartsAssetsHost == nil || *c.EChartsAssetsHost == "" {
		return DefaultEChartsAssetsHost
	}
	return *c.EChartsAssetsHost
}

// GetMaxChartPoints returns the per-axis cap of the HTML chart.
func (c *AppConfig) GetMaxChartPoints() int {
	if c.MaxChartPoints == nil {
		return DefaultMaxChartPoints
	}
	return *c.MaxChartPoints
}

// GetHistoryLimit returns how many history rows the API returns by default.
func (c *AppConfig) GetHistoryLimit() int {
	if c.HistoryLimit == nil {
		return DefaultHistoryLimit
	}
	return *c.HistoryLimit
}

// GetBuildTimeout returns the limit on one request's surface build.
func (c *AppConfig) GetBuildTimeout() time.Duration {
	if c.BuildTimeout == nil || *c.BuildTimeout == "" {
		return DefaultBuildTimeout
	}
	d, err := time.ParseDuration(*c.BuildTimeout)
	if err != nil || d <= 0 {
		return DefaultBuildTimeout
	}
	return d
}
