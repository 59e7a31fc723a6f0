// Package config loads bluescan settings from YAML, defaults and
// BLUESCAN_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/bluescan/internal/detector"
)

// EnvPrefix prefixes environment overrides, e.g. BLUESCAN_SERVER_ADDR.
const EnvPrefix = "BLUESCAN"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Detection DetectionConfig `mapstructure:"detection"`
}

type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
}

// StoreConfig locates the detection history database. An empty path disables history.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// CaptureConfig selects the display scanned by /api/scan.
type CaptureConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Display int  `mapstructure:"display"`
}

type WeightsConfig struct {
	Color    float64 `mapstructure:"color"`
	Position float64 `mapstructure:"position"`
	Size     float64 `mapstructure:"size"`
}

// ColorRangeConfig is an HSV range written as [h, s, v] triples.
type ColorRangeConfig struct {
	Name  string `mapstructure:"name"`
	Lower []int  `mapstructure:"lower"`
	Upper []int  `mapstructure:"upper"`
}

type DetectionConfig struct {
	ReferenceWidth      int                `mapstructure:"reference_width"`
	ReferenceHeight     int                `mapstructure:"reference_height"`
	MinWidth            int                `mapstructure:"min_width"`
	MaxWidth            int                `mapstructure:"max_width"`
	MinHeight           int                `mapstructure:"min_height"`
	MaxHeight           int                `mapstructure:"max_height"`
	MinArea             int                `mapstructure:"min_area"`
	MaxArea             int                `mapstructure:"max_area"`
	MinAspectRatio      float64            `mapstructure:"min_aspect_ratio"`
	MaxAspectRatio      float64            `mapstructure:"max_aspect_ratio"`
	EdgeMarginPercent   float64            `mapstructure:"edge_margin_percent"`
	Weights             WeightsConfig      `mapstructure:"weights"`
	ColorRanges         []ColorRangeConfig `mapstructure:"color_ranges"`
	KernelSize          int                `mapstructure:"kernel_size"`
	MinBlueRatio        float64            `mapstructure:"min_blue_ratio"`
	CacheSize           int                `mapstructure:"cache_size"`
	ResolutionTolerance float64            `mapstructure:"resolution_tolerance"`
	Debug               bool               `mapstructure:"debug"`
}

// Load reads configPath on top of the defaults. An empty path uses the
// defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if _, err := cfg.DetectorConfig(); err != nil {
		return nil, fmt.Errorf("invalid detection config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_upload_size", d.Server.MaxUploadSize)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.mode", d.Log.Mode)

	v.SetDefault("capture.enabled", d.Capture.Enabled)
	v.SetDefault("capture.display", d.Capture.Display)

	det := d.Detection
	v.SetDefault("detection.reference_width", det.ReferenceWidth)
	v.SetDefault("detection.reference_height", det.ReferenceHeight)
	v.SetDefault("detection.min_width", det.MinWidth)
	v.SetDefault("detection.max_width", det.MaxWidth)
	v.SetDefault("detection.min_height", det.MinHeight)
	v.SetDefault("detection.max_height", det.MaxHeight)
	v.SetDefault("detection.min_area", det.MinArea)
	v.SetDefault("detection.max_area", det.MaxArea)
	v.SetDefault("detection.min_aspect_ratio", det.MinAspectRatio)
	v.SetDefault("detection.max_aspect_ratio", det.MaxAspectRatio)
	v.SetDefault("detection.edge_margin_percent", det.EdgeMarginPercent)
	v.SetDefault("detection.weights.color", det.Weights.Color)
	v.SetDefault("detection.weights.position", det.Weights.Position)
	v.SetDefault("detection.weights.size", det.Weights.Size)
	v.SetDefault("detection.kernel_size", det.KernelSize)
	v.SetDefault("detection.min_blue_ratio", det.MinBlueRatio)
	v.SetDefault("detection.cache_size", det.CacheSize)
	v.SetDefault("detection.resolution_tolerance", det.ResolutionTolerance)
	v.SetDefault("detection.debug", det.Debug)

	ranges := make([]map[string]any, 0, len(det.ColorRanges))
	for _, r := range det.ColorRanges {
		ranges = append(ranges, map[string]any{"name": r.Name, "lower": r.Lower, "upper": r.Upper})
	}
	v.SetDefault("detection.color_ranges", ranges)
}

// Default returns the built-in configuration.
func Default() *Config {
	base := detector.DefaultBaseThresholds()
	dc := detector.DefaultConfig()

	ranges := make([]ColorRangeConfig, 0, len(dc.ColorRanges))
	for _, r := range dc.ColorRanges {
		ranges = append(ranges, ColorRangeConfig{
			Name:  r.Name,
			Lower: []int{int(r.Lower.H), int(r.Lower.S), int(r.Lower.V)},
			Upper: []int{int(r.Upper.H), int(r.Upper.S), int(r.Upper.V)},
		})
	}

	return &Config{
		Server: ServerConfig{
			Addr:          "127.0.0.1:8420",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			MaxUploadSize: 20 << 20,
		},
		Store: StoreConfig{Path: "bluescan.db"},
		Log:   LogConfig{Mode: "debug"},
		Capture: CaptureConfig{
			Enabled: true,
			Display: 0,
		},
		Detection: DetectionConfig{
			ReferenceWidth:    base.Reference.Width,
			ReferenceHeight:   base.Reference.Height,
			MinWidth:          base.MinWidth,
			MaxWidth:          base.MaxWidth,
			MinHeight:         base.MinHeight,
			MaxHeight:         base.MaxHeight,
			MinArea:           base.MinArea,
			MaxArea:           base.MaxArea,
			MinAspectRatio:    base.MinAspectRatio,
			MaxAspectRatio:    base.MaxAspectRatio,
			EdgeMarginPercent: base.EdgeMarginPercent,
			Weights: WeightsConfig{
				Color:    base.Weights.Color,
				Position: base.Weights.Position,
				Size:     base.Weights.Size,
			},
			ColorRanges:         ranges,
			KernelSize:          dc.KernelSize,
			MinBlueRatio:        dc.MinBlueRatio,
			CacheSize:           dc.CacheSize,
			ResolutionTolerance: dc.ResolutionTolerance,
		},
	}
}

// DetectorConfig converts the detection section and validates it.
func (c *Config) DetectorConfig() (detector.Config, error) {
	d := c.Detection

	ranges := make([]detector.ColorRange, 0, len(d.ColorRanges))
	for _, rc := range d.ColorRanges {
		lower, err := toHSV(rc.Name, "lower", rc.Lower)
		if err != nil {
			return detector.Config{}, err
		}
		upper, err := toHSV(rc.Name, "upper", rc.Upper)
		if err != nil {
			return detector.Config{}, err
		}
		r, err := detector.NewColorRange(rc.Name, lower, upper)
		if err != nil {
			return detector.Config{}, err
		}
		ranges = append(ranges, r)
	}

	cfg := detector.Config{
		Base: detector.BaseThresholds{
			Reference:         detector.Resolution{Width: d.ReferenceWidth, Height: d.ReferenceHeight},
			MinWidth:          d.MinWidth,
			MaxWidth:          d.MaxWidth,
			MinHeight:         d.MinHeight,
			MaxHeight:         d.MaxHeight,
			MinArea:           d.MinArea,
			MaxArea:           d.MaxArea,
			MinAspectRatio:    d.MinAspectRatio,
			MaxAspectRatio:    d.MaxAspectRatio,
			EdgeMarginPercent: d.EdgeMarginPercent,
			Weights: detector.ScoreWeights{
				Color:    d.Weights.Color,
				Position: d.Weights.Position,
				Size:     d.Weights.Size,
			},
		},
		ColorRanges:         ranges,
		KernelSize:          d.KernelSize,
		MinBlueRatio:        d.MinBlueRatio,
		CacheSize:           d.CacheSize,
		ResolutionTolerance: d.ResolutionTolerance,
		Debug:               d.Debug,
	}
	if err := cfg.Validate(); err != nil {
		return detector.Config{}, err
	}
	return cfg, nil
}

func toHSV(name, which string, v []int) (detector.HSV, error) {
	if len(v) != 3 {
		return detector.HSV{}, fmt.Errorf("%w: %q %s bound needs 3 values, got %d",
			detector.ErrInvalidColorRange, name, which, len(v))
	}
	for _, c := range v {
		if c < 0 || c > 255 {
			return detector.HSV{}, fmt.Errorf("%w: %q %s value %d out of [0,255]",
				detector.ErrInvalidColorRange, name, which, c)
		}
	}
	return detector.HSV{H: uint8(v[0]), S: uint8(v[1]), V: uint8(v[2])}, nil
}
