// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"featidx/internal/feature"
	applog "featidx/internal/log"
	"featidx/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Defaults and limits for the engine configuration.
const (
	DefaultLogLevel        = "info"
	DefaultOutputDevice    = MinDeviceID // System default output
	DefaultFramesPerBuffer = 512
	DefaultBitDepth        = 16
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultUDPSendInterval = 33 * time.Millisecond // ~30Hz
	DefaultWSAddress       = ":8080"

	MinDeviceID     = -1 // -1 represents the system default device
	MinBufferFrames = 16
	MaxBufferFrames = 8192
)

// Config is the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (debug logging and index checks).
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Preview playback settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Feature computation settings.
	Export    ExportConfig    `yaml:"export"`    // Rendered audio output settings.
	Transport TransportConfig `yaml:"transport"` // Frame publishing settings.
}

// AudioConfig holds settings for preview playback.
type AudioConfig struct {
	OutputDevice    int  `yaml:"output_device"`     // PortAudio device index for playback (-1 for default).
	FramesPerBuffer int  `yaml:"frames_per_buffer"` // Frames per playback buffer, a power of two.
	LowLatency      bool `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
}

// AnalysisConfig holds settings for on-demand feature computation.
type AnalysisConfig struct {
	Compute []string `yaml:"compute"` // Dimensions computed after loading ("frequency", "phase", "volume", "pan", "all").
}

// ExportConfig holds settings for writing rendered audio.
type ExportConfig struct {
	BitDepth int `yaml:"bit_depth"` // WAV bit depth (16, 24 or 32).
}

// TransportConfig holds settings for sending analysis frames over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending spectral frames over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
	WSEnabled        bool          `yaml:"ws_enabled"`         // Serve feature statistics to WebSocket clients.
	WSAddress        string        `yaml:"ws_address"`         // Listen address for the WebSocket server.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			OutputDevice:    DefaultOutputDevice,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Export: ExportConfig{
			BitDepth: DefaultBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPSendInterval,
			WSAddress:        DefaultWSAddress,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty, it looks for "config.yaml" in the working directory and falls
// back to built-in defaults. Environment overrides are applied after the
// file and the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not a known level", c.LogLevel)
	}

	if c.Audio.OutputDevice < MinDeviceID {
		return fmt.Errorf("audio.output_device must be >= %d, got %d", MinDeviceID, c.Audio.OutputDevice)
	}
	fpb := c.Audio.FramesPerBuffer
	if fpb < MinBufferFrames || fpb > MaxBufferFrames || !bitint.IsPowerOfTwo(fpb) {
		return fmt.Errorf("audio.frames_per_buffer must be a power of two in [%d, %d], got %d (nearest: %d)",
			MinBufferFrames, MaxBufferFrames, fpb, bitint.NextPowerOfTwo(fpb))
	}

	if _, err := c.ComputeDimensions(); err != nil {
		return fmt.Errorf("analysis.compute: %w", err)
	}

	switch c.Export.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("export.bit_depth must be 16, 24 or 32, got %d", c.Export.BitDepth)
	}

	if c.Transport.UDPEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			return fmt.Errorf("transport.udp_target_address %q: %w", c.Transport.UDPTargetAddress, err)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if c.Transport.WSEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.WSAddress); err != nil {
			return fmt.Errorf("transport.ws_address %q: %w", c.Transport.WSAddress, err)
		}
	}

	return nil
}

// ComputeDimensions folds analysis.compute into a dimension set.
func (c *Config) ComputeDimensions() (feature.Dimension, error) {
	var dims feature.Dimension
	for _, name := range c.Analysis.Compute {
		d, err := feature.ParseDimension(name)
		if err != nil {
			return 0, err
		}
		dims |= d
	}
	return dims, nil
}

// Level returns the effective log level. Debug mode always logs at debug.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

// applyEnvOverrides replaces settings with ENV_* variables when present.
// Malformed values are ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Infof("configuration: overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Infof("configuration: overriding log_level from env: %s", val)
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Infof("configuration: overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("configuration: overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			applog.Infof("configuration: overriding transport.udp_send_interval from env: %s", dur)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WSAddress = val
		applog.Infof("configuration: overriding transport.ws_address from env: %s", val)
	}
}
