package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Analytics transport names.
const (
	TransportHTTP = "http"
	TransportOTLP = "otlp"
)

type Config struct {
	Storefront StorefrontConfig
	Analytics  AnalyticsConfig
	Display    DisplayConfig
	Storage    StorageConfig
	Receiver   ReceiverConfig
	Debug      DebugConfig
}

type StorefrontConfig struct {
	BaseURL        string `toml:"base_url"`
	CartPath       string `toml:"cart_path"`
	CartEndpoint   string `toml:"cart_endpoint"`
	TimersEndpoint string `toml:"timers_endpoint"`
	TimeoutMS      int    `toml:"timeout_ms"`
}

type AnalyticsConfig struct {
	Endpoint     string `toml:"endpoint"`
	Transport    string `toml:"transport"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	MaxRetries   int    `toml:"max_retries"`
	TimeoutMS    int    `toml:"timeout_ms"`
}

type DisplayConfig struct {
	FrameIntervalMS  int `toml:"frame_interval_ms"`
	TickIntervalMS   int `toml:"tick_interval_ms"`
	PulseMS          int `toml:"pulse_ms"`
	CloseAnimationMS int `toml:"close_animation_ms"`
	EventBufferSize  int `toml:"event_buffer_size"`
}

type StorageConfig struct {
	DBPath        string `toml:"db_path"`
	RetentionDays int    `toml:"retention_days"`
}

type ReceiverConfig struct {
	Bind           string `toml:"bind"`
	HTTPPort       int    `toml:"http_port"`
	GRPCPort       int    `toml:"grpc_port"`
	CartTotalCents int64  `toml:"cart_total_cents"`
	TimersFile     string `toml:"timers_file"`
}

type DebugConfig struct {
	Enabled bool   `toml:"enabled"`
	LogPath string `toml:"log_path"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Storefront: StorefrontConfig{
			BaseURL:        "http://127.0.0.1:4318",
			CartPath:       "/cart",
			CartEndpoint:   "/cart.js",
			TimersEndpoint: "/api/timers",
			TimeoutMS:      5000,
		},
		Analytics: AnalyticsConfig{
			Endpoint:     "http://127.0.0.1:4318/api/analytics",
			Transport:    TransportHTTP,
			OTLPEndpoint: "127.0.0.1:4317",
			MaxRetries:   3,
			TimeoutMS:    10000,
		},
		Display: DisplayConfig{
			FrameIntervalMS:  100,
			TickIntervalMS:   1000,
			PulseMS:          300,
			CloseAnimationMS: 300,
			EventBufferSize:  200,
		},
		Storage: StorageConfig{
			DBPath:        "~/.local/share/storetimer/storage.db",
			RetentionDays: 90,
		},
		Receiver: ReceiverConfig{
			Bind:     "127.0.0.1",
			HTTPPort: 4318,
			GRPCPort: 4317,
		},
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "storetimer", "config.toml")
}

func Load() (*LoadResult, error) {
	return LoadFrom(defaultConfigPath())
}

func LoadFrom(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &LoadResult{Config: DefaultConfig()}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromString(string(data))
}

var knownTopLevel = map[string]bool{
	"storefront": true,
	"analytics":  true,
	"display":    true,
	"storage":    true,
	"receiver":   true,
	"debug":      true,
}

func LoadFromString(data string) (*LoadResult, error) {
	cfg := DefaultConfig()
	result := &LoadResult{Config: cfg}

	if data == "" {
		return result, nil
	}

	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for key := range raw {
		if !knownTopLevel[key] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key))
		}
	}

	var tf tomlFile
	if _, err := toml.Decode(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	mergeFromRaw(&result.Config, &tf, raw)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}

	return result, nil
}

type tomlFile struct {
	Storefront *StorefrontConfig `toml:"storefront"`
	Analytics  *AnalyticsConfig  `toml:"analytics"`
	Display    *DisplayConfig    `toml:"display"`
	Storage    *StorageConfig    `toml:"storage"`
	Receiver   *ReceiverConfig   `toml:"receiver"`
	Debug      *DebugConfig      `toml:"debug"`
}

// mergeFromRaw copies only the keys present in the file so that omitted
// keys keep their defaults even when their zero value would be valid.
func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if tf.Storefront != nil {
		if section, ok := rawSection(raw, "storefront"); ok {
			if _, exists := section["base_url"]; exists {
				cfg.Storefront.BaseURL = tf.Storefront.BaseURL
			}
			if _, exists := section["cart_path"]; exists {
				cfg.Storefront.CartPath = tf.Storefront.CartPath
			}
			if _, exists := section["cart_endpoint"]; exists {
				cfg.Storefront.CartEndpoint = tf.Storefront.CartEndpoint
			}
			if _, exists := section["timers_endpoint"]; exists {
				cfg.Storefront.TimersEndpoint = tf.Storefront.TimersEndpoint
			}
			if _, exists := section["timeout_ms"]; exists {
				cfg.Storefront.TimeoutMS = tf.Storefront.TimeoutMS
			}
		}
	}
	if tf.Analytics != nil {
		if section, ok := rawSection(raw, "analytics"); ok {
			if _, exists := section["endpoint"]; exists {
				cfg.Analytics.Endpoint = tf.Analytics.Endpoint
			}
			if _, exists := section["transport"]; exists {
				cfg.Analytics.Transport = tf.Analytics.Transport
			}
			if _, exists := section["otlp_endpoint"]; exists {
				cfg.Analytics.OTLPEndpoint = tf.Analytics.OTLPEndpoint
			}
			if _, exists := section["max_retries"]; exists {
				cfg.Analytics.MaxRetries = tf.Analytics.MaxRetries
			}
			if _, exists := section["timeout_ms"]; exists {
				cfg.Analytics.TimeoutMS = tf.Analytics.TimeoutMS
			}
		}
	}
	if tf.Display != nil {
		if section, ok := rawSection(raw, "display"); ok {
			if _, exists := section["frame_interval_ms"]; exists {
				cfg.Display.FrameIntervalMS = tf.Display.FrameIntervalMS
			}
			if _, exists := section["tick_interval_ms"]; exists {
				cfg.Display.TickIntervalMS = tf.Display.TickIntervalMS
			}
			if _, exists := section["pulse_ms"]; exists {
				cfg.Display.PulseMS = tf.Display.PulseMS
			}
			if _, exists := section["close_animation_ms"]; exists {
				cfg.Display.CloseAnimationMS = tf.Display.CloseAnimationMS
			}
			if _, exists := section["event_buffer_size"]; exists {
				cfg.Display.EventBufferSize = tf.Display.EventBufferSize
			}
		}
	}
	if tf.Storage != nil {
		if section, ok := rawSection(raw, "storage"); ok {
			if _, exists := section["db_path"]; exists {
				cfg.Storage.DBPath = tf.Storage.DBPath
			}
			if _, exists := section["retention_days"]; exists {
				cfg.Storage.RetentionDays = tf.Storage.RetentionDays
			}
		}
	}
	if tf.Receiver != nil {
		if section, ok := rawSection(raw, "receiver"); ok {
			if _, exists := section["bind"]; exists {
				cfg.Receiver.Bind = tf.Receiver.Bind
			}
			if _, exists := section["http_port"]; exists {
				cfg.Receiver.HTTPPort = tf.Receiver.HTTPPort
			}
			if _, exists := section["grpc_port"]; exists {
				cfg.Receiver.GRPCPort = tf.Receiver.GRPCPort
			}
			if _, exists := section["cart_total_cents"]; exists {
				cfg.Receiver.CartTotalCents = tf.Receiver.CartTotalCents
			}
			if _, exists := section["timers_file"]; exists {
				cfg.Receiver.TimersFile = tf.Receiver.TimersFile
			}
		}
	}
	if tf.Debug != nil {
		if section, ok := rawSection(raw, "debug"); ok {
			if _, exists := section["enabled"]; exists {
				cfg.Debug.Enabled = tf.Debug.Enabled
			}
			if _, exists := section["log_path"]; exists {
				cfg.Debug.LogPath = tf.Debug.LogPath
			}
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func validate(cfg *Config) error {
	var errs []string

	if _, err := url.Parse(cfg.Storefront.BaseURL); err != nil || cfg.Storefront.BaseURL == "" {
		errs = append(errs, fmt.Sprintf("storefront base_url must be a URL, got %q", cfg.Storefront.BaseURL))
	}
	if !strings.HasPrefix(cfg.Storefront.CartPath, "/") {
		errs = append(errs, fmt.Sprintf("storefront cart_path must start with /, got %q", cfg.Storefront.CartPath))
	}
	if cfg.Storefront.TimeoutMS < 1 {
		errs = append(errs, fmt.Sprintf("storefront timeout_ms must be positive, got %d", cfg.Storefront.TimeoutMS))
	}

	switch cfg.Analytics.Transport {
	case TransportHTTP:
		if cfg.Analytics.Endpoint == "" {
			errs = append(errs, "analytics endpoint is required for the http transport")
		}
	case TransportOTLP:
		if cfg.Analytics.OTLPEndpoint == "" {
			errs = append(errs, "analytics otlp_endpoint is required for the otlp transport")
		}
	default:
		errs = append(errs, fmt.Sprintf("analytics transport must be %q or %q, got %q", TransportHTTP, TransportOTLP, cfg.Analytics.Transport))
	}
	if cfg.Analytics.MaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("analytics max_retries must not be negative, got %d", cfg.Analytics.MaxRetries))
	}
	if cfg.Analytics.TimeoutMS < 1 {
		errs = append(errs, fmt.Sprintf("analytics timeout_ms must be positive, got %d", cfg.Analytics.TimeoutMS))
	}

	if cfg.Display.FrameIntervalMS < 1 {
		errs = append(errs, fmt.Sprintf("frame_interval_ms must be positive, got %d", cfg.Display.FrameIntervalMS))
	}
	if cfg.Display.TickIntervalMS < cfg.Display.FrameIntervalMS {
		errs = append(errs, fmt.Sprintf("tick_interval_ms must be at least frame_interval_ms, got %d", cfg.Display.TickIntervalMS))
	}
	if cfg.Display.PulseMS < 0 {
		errs = append(errs, fmt.Sprintf("pulse_ms must not be negative, got %d", cfg.Display.PulseMS))
	}
	if cfg.Display.CloseAnimationMS < 0 {
		errs = append(errs, fmt.Sprintf("close_animation_ms must not be negative, got %d", cfg.Display.CloseAnimationMS))
	}
	if cfg.Display.EventBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("event_buffer_size must be positive, got %d", cfg.Display.EventBufferSize))
	}

	if cfg.Storage.RetentionDays <= 0 {
		errs = append(errs, fmt.Sprintf("storage retention_days must be positive, got %d", cfg.Storage.RetentionDays))
	}

	if cfg.Receiver.HTTPPort < 1 || cfg.Receiver.HTTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("http_port must be 1-65535, got %d", cfg.Receiver.HTTPPort))
	}
	if cfg.Receiver.GRPCPort < 1 || cfg.Receiver.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("grpc_port must be 1-65535, got %d", cfg.Receiver.GRPCPort))
	}
	if cfg.Receiver.CartTotalCents < 0 {
		errs = append(errs, fmt.Sprintf("cart_total_cents must not be negative, got %d", cfg.Receiver.CartTotalCents))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}
