package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds process-level configuration, loaded from environment
// variables and an optional .env file before any drive is attached.
type Config struct {
	// Paths
	MediaRoot string // pins a fixed media root; empty enables discovery

	// Drive monitor
	DrivePollSeconds int

	// Scanner
	MinFileSizeMB int // videos smaller than this are skipped as samples

	// Playback
	ShuffleSeed               int64 // 0 = randomized play order
	EngineReadyTimeoutSeconds int

	// Media engine
	MPVPath   string
	MPVSocket string

	// Server
	ServerPort string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	viper.SetDefault("DRIVE_POLL_SECONDS", 5)
	viper.SetDefault("MIN_FILE_SIZE_MB", 50)
	viper.SetDefault("SHUFFLE_SEED", 0)
	viper.SetDefault("ENGINE_READY_TIMEOUT_SECONDS", 15)
	viper.SetDefault("MPV_PATH", "mpv")
	viper.SetDefault("MPV_SOCKET", filepath.Join(os.TempDir(), "pondtv-mpv.sock"))
	viper.SetDefault("SERVER_PORT", "8317")
	viper.SetDefault("LOG_LEVEL", "info")

	config := &Config{
		MediaRoot:                 viper.GetString("MEDIA_ROOT"),
		DrivePollSeconds:          viper.GetInt("DRIVE_POLL_SECONDS"),
		MinFileSizeMB:             viper.GetInt("MIN_FILE_SIZE_MB"),
		ShuffleSeed:               viper.GetInt64("SHUFFLE_SEED"),
		EngineReadyTimeoutSeconds: viper.GetInt("ENGINE_READY_TIMEOUT_SECONDS"),
		MPVPath:                   viper.GetString("MPV_PATH"),
		MPVSocket:                 viper.GetString("MPV_SOCKET"),
		ServerPort:                viper.GetString("SERVER_PORT"),
		LogLevel:                  viper.GetString("LOG_LEVEL"),
	}

	if config.DrivePollSeconds <= 0 {
		return nil, fmt.Errorf("DRIVE_POLL_SECONDS must be positive")
	}
	if config.EngineReadyTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("ENGINE_READY_TIMEOUT_SECONDS must be positive")
	}
	if config.MinFileSizeMB < 0 {
		return nil, fmt.Errorf("MIN_FILE_SIZE_MB must not be negative")
	}

	return config, nil
}

// DrivePollInterval returns the drive presence polling interval
func (c *Config) DrivePollInterval() time.Duration {
	return time.Duration(c.DrivePollSeconds) * time.Second
}

// EngineReadyTimeout returns the bounded window for engine readiness
func (c *Config) EngineReadyTimeout() time.Duration {
	return time.Duration(c.EngineReadyTimeoutSeconds) * time.Second
}

// DriveConfig holds the user-editable options read from config.yml at the
// media root. Missing file or keys fall back to the documented defaults.
type DriveConfig struct {
	SeenThresholdPercentage  float64 `yaml:"seen_threshold_percentage"`
	AutoMarkSeen             bool    `yaml:"auto_mark_seen"`
	MarkSkippedSeen          bool    `yaml:"mark_skipped_seen"`
	TitleDisplayDuration     int     `yaml:"title_display_duration"`
	ChannelGuideItemsPerPage int     `yaml:"channel_guide_items_per_page"`
	VolumeStep               int     `yaml:"volume_step"`
}

// DefaultDriveConfig returns the documented per-drive defaults
func DefaultDriveConfig() *DriveConfig {
	return &DriveConfig{
		SeenThresholdPercentage:  95.0,
		AutoMarkSeen:             true,
		MarkSkippedSeen:          false,
		TitleDisplayDuration:     5,
		ChannelGuideItemsPerPage: 10,
		VolumeStep:               5,
	}
}

// LoadDriveConfig reads config.yml from the media root. When the file is
// absent, one is created with the defaults so users can discover the knobs.
func LoadDriveConfig(mediaRoot string) (*DriveConfig, error) {
	path := filepath.Join(mediaRoot, "config.yml")
	cfg := DefaultDriveConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Read-only drives still play with defaults.
		_ = writeDefaultDriveConfig(path, cfg)
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("seen_threshold_percentage", cfg.SeenThresholdPercentage)
	v.SetDefault("auto_mark_seen", cfg.AutoMarkSeen)
	v.SetDefault("mark_skipped_seen", cfg.MarkSkippedSeen)
	v.SetDefault("title_display_duration", cfg.TitleDisplayDuration)
	v.SetDefault("channel_guide_items_per_page", cfg.ChannelGuideItemsPerPage)
	v.SetDefault("volume_step", cfg.VolumeStep)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read drive config: %w", err)
	}

	cfg.SeenThresholdPercentage = v.GetFloat64("seen_threshold_percentage")
	cfg.AutoMarkSeen = v.GetBool("auto_mark_seen")
	cfg.MarkSkippedSeen = v.GetBool("mark_skipped_seen")
	cfg.TitleDisplayDuration = v.GetInt("title_display_duration")
	cfg.ChannelGuideItemsPerPage = v.GetInt("channel_guide_items_per_page")
	cfg.VolumeStep = v.GetInt("volume_step")

	if cfg.SeenThresholdPercentage <= 0 || cfg.SeenThresholdPercentage > 100 {
		return nil, fmt.Errorf("seen_threshold_percentage must be in (0, 100], got %v", cfg.SeenThresholdPercentage)
	}
	if cfg.ChannelGuideItemsPerPage <= 0 {
		return nil, fmt.Errorf("channel_guide_items_per_page must be positive")
	}

	return cfg, nil
}

// SeenThreshold returns the completion fraction in [0, 1]
func (c *DriveConfig) SeenThreshold() float64 {
	return c.SeenThresholdPercentage / 100.0
}

func writeDefaultDriveConfig(path string, cfg *DriveConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
