package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/surface.defaults.json"

// DefaultAPIURL is the particle service endpoint used when api_url is unset.
const DefaultAPIURL = "https://devkluster.ehr.ee/api/3dtwin/v1/rest-api/particles"

// SurfaceConfig is the runtime configuration for the surface service and CLI.
// Every field is optional; the Get* methods supply defaults for unset fields
// so partial configs are safe.
type SurfaceConfig struct {
	// Particle service
	APIURL         *string `json:"api_url,omitempty"`
	RequestTimeout *string `json:"request_timeout,omitempty"` // duration string like "30s"

	// Classification
	Epsilon  *float64 `json:"epsilon,omitempty"`
	Parallel *bool    `json:"parallel,omitempty"`

	// HTTP service
	Listen *string `json:"listen,omitempty"`

	// Rendering
	Opacity      *float64 `json:"opacity,omitempty"`
	PlotWidthCm  *float64 `json:"plot_width_cm,omitempty"`
	PlotHeightCm *float64 `json:"plot_height_cm,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// EmptySurfaceConfig returns a SurfaceConfig with all fields set to nil.
func EmptySurfaceConfig() *SurfaceConfig {
	return &SurfaceConfig{}
}

// DefaultSurfaceConfig returns a SurfaceConfig with every field populated
// from the built-in defaults.
func DefaultSurfaceConfig() *SurfaceConfig {
	empty := EmptySurfaceConfig()
	return &SurfaceConfig{
		APIURL:         ptrString(empty.GetAPIURL()),
		RequestTimeout: ptrString(empty.GetRequestTimeout().String()),
		Epsilon:        ptrFloat64(empty.GetEpsilon()),
		Parallel:       ptrBool(empty.GetParallel()),
		Listen:         ptrString(empty.GetListen()),
		Opacity:        ptrFloat64(empty.GetOpacity()),
		PlotWidthCm:    ptrFloat64(empty.GetPlotWidthCm()),
		PlotHeightCm:   ptrFloat64(empty.GetPlotHeightCm()),
	}
}

// LoadSurfaceConfig loads a SurfaceConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadSurfaceConfig(path string) (*SurfaceConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySurfaceConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repo root. Panics if the file cannot
// be loaded; intended for test setup.
func MustLoadDefaultConfig() *SurfaceConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSurfaceConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *SurfaceConfig) Validate() error {
	if c.APIURL != nil && *c.APIURL == "" {
		return fmt.Errorf("api_url must not be empty when set")
	}

	if c.RequestTimeout != nil && *c.RequestTimeout != "" {
		d, err := time.ParseDuration(*c.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout '%s': %w", *c.RequestTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("request_timeout must be positive, got %s", d)
		}
	}

	// A zero band would turn classification into a bare sign test.
	if c.Epsilon != nil && *c.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %g", *c.Epsilon)
	}

	if c.Opacity != nil && (*c.Opacity < 0 || *c.Opacity > 1) {
		return fmt.Errorf("opacity must be between 0 and 1, got %f", *c.Opacity)
	}

	if c.PlotWidthCm != nil && *c.PlotWidthCm <= 0 {
		return fmt.Errorf("plot_width_cm must be positive, got %f", *c.PlotWidthCm)
	}
	if c.PlotHeightCm != nil && *c.PlotHeightCm <= 0 {
		return fmt.Errorf("plot_height_cm must be positive, got %f", *c.PlotHeightCm)
	}

	return nil
}

// GetAPIURL returns the particle service endpoint or the default.
func (c *SurfaceConfig) GetAPIURL() string {
	if c.APIURL == nil || *c.APIURL == "" {
		return DefaultAPIURL
	}
	return *c.APIURL
}

// GetRequestTimeout parses and returns RequestTimeout as a time.Duration.
func (c *SurfaceConfig) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == nil || *c.RequestTimeout == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second // default on parse error
	}
	return d
}

// GetEpsilon returns the classification tolerance or the default.
func (c *SurfaceConfig) GetEpsilon() float64 {
	if c.Epsilon == nil || *c.Epsilon <= 0 {
		return 1e-6
	}
	return *c.Epsilon
}

// GetParallel returns the parallel value or the default.
func (c *SurfaceConfig) GetParallel() bool {
	if c.Parallel == nil {
		return false
	}
	return *c.Parallel
}

// GetListen returns the HTTP listen address or the default.
func (c *SurfaceConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetOpacity returns the mesh opacity or the default.
func (c *SurfaceConfig) GetOpacity() float64 {
	if c.Opacity == nil {
		return 0.5
	}
	return *c.Opacity
}

// GetPlotWidthCm returns the plan view width or the default.
func (c *SurfaceConfig) GetPlotWidthCm() float64 {
	if c.PlotWidthCm == nil {
		return 20
	}
	return *c.PlotWidthCm
}

// GetPlotHeightCm returns the plan view height or the default.
func (c *SurfaceConfig) GetPlotHeightCm() float64 {
	if c.PlotHeightCm == nil {
		return 20
	}
	return *c.PlotHeightCm
}
