// Package config loads the daemon configuration.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/sidecartridge/booster/boosterd/internal/flash"
)

// Config holds all configuration for boosterd.
// Values come from an optional YAML file; environment variables override them.
type Config struct {
	// Flash image backing the device flash.
	FlashImage string      `yaml:"flash_image" env:"BOOSTER_FLASH_IMAGE" env-default:"/var/lib/booster/flash.img"`
	Flash      FlashConfig `yaml:"flash"`

	// Removable storage mount point and the apps folder on it.
	StorageRoot string `yaml:"storage_root" env:"BOOSTER_STORAGE_ROOT" env-default:"/mnt/sdcard"`
	AppsFolder  string `yaml:"apps_folder"  env:"BOOSTER_APPS_FOLDER"  env-default:"/mnt/sdcard/apps"`

	StatePath  string `yaml:"state_path"  env:"BOOSTER_STATE_PATH"  env-default:"/var/lib/booster/settings.txt"`
	SocketPath string `yaml:"socket_path" env:"BOOSTER_SOCKET_PATH" env-default:"/run/booster/unix.socket"`

	// LocalPath enables file:// downloads from this folder when set.
	LocalPath string `yaml:"local_path" env:"BOOSTER_LOCAL_PATH" env-default:""`

	Download DownloadConfig `yaml:"download"`
	Launch   LaunchConfig   `yaml:"launch"`

	TickInterval time.Duration `yaml:"tick_interval" env:"BOOSTER_TICK_INTERVAL" env-default:"250ms"`
	LogLevel     string        `yaml:"log_level"     env:"BOOSTER_LOG_LEVEL"     env-default:"info"`
}

// FlashConfig holds the flash geometry and layout.
type FlashConfig struct {
	SectorSize        uint32 `yaml:"sector_size"         env:"BOOSTER_FLASH_SECTOR_SIZE"         env-default:"4096"`
	PageSize          uint32 `yaml:"page_size"           env:"BOOSTER_FLASH_PAGE_SIZE"           env-default:"256"`
	BlockSize         uint32 `yaml:"block_size"          env:"BOOSTER_FLASH_BLOCK_SIZE"          env-default:"65536"`
	StorageStart      uint32 `yaml:"storage_start"       env:"BOOSTER_FLASH_STORAGE_START"       env-default:"1048576"`
	StorageSize       uint32 `yaml:"storage_size"        env:"BOOSTER_FLASH_STORAGE_SIZE"        env-default:"786432"`
	ConfigStart       uint32 `yaml:"config_start"        env:"BOOSTER_FLASH_CONFIG_START"        env-default:"1835008"`
	ConfigSize        uint32 `yaml:"config_size"         env:"BOOSTER_FLASH_CONFIG_SIZE"         env-default:"253952"`
	LookupStart       uint32 `yaml:"lookup_start"        env:"BOOSTER_FLASH_LOOKUP_START"        env-default:"2088960"`
	GlobalConfigStart uint32 `yaml:"global_config_start" env:"BOOSTER_FLASH_GLOBAL_CONFIG_START" env-default:"2093056"`
	GlobalConfigSize  uint32 `yaml:"global_config_size"  env:"BOOSTER_FLASH_GLOBAL_CONFIG_SIZE"  env-default:"4096"`
}

// DownloadConfig holds the download state machine settings.
type DownloadConfig struct {
	MaxSize    int64         `yaml:"max_size"    env:"BOOSTER_DOWNLOAD_MAX_SIZE"    env-default:"1048576"`
	Timeout    time.Duration `yaml:"timeout"     env:"BOOSTER_DOWNLOAD_TIMEOUT"     env-default:"5m"`
	StartDelay time.Duration `yaml:"start_delay" env:"BOOSTER_DOWNLOAD_START_DELAY" env-default:"3s"`
	PollWait   time.Duration `yaml:"poll_wait"   env:"BOOSTER_DOWNLOAD_POLL_WAIT"   env-default:"100ms"`
}

// LaunchConfig holds the launch flow settings.
type LaunchConfig struct {
	Delay        time.Duration `yaml:"delay"         env:"BOOSTER_LAUNCH_DELAY"         env-default:"5s"`
	ResetCommand string        `yaml:"reset_command" env:"BOOSTER_LAUNCH_RESET_COMMAND" env-default:""`
}

// Load reads the configuration from path, if not empty, with environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Layout returns the flash layout.
func (c *Config) Layout() flash.Layout {
	return flash.Layout{
		Geometry: flash.Geometry{
			SectorSize: c.Flash.SectorSize,
			PageSize:   c.Flash.PageSize,
		},

		StorageStart:      c.Flash.StorageStart,
		StorageSize:       c.Flash.StorageSize,
		ConfigStart:       c.Flash.ConfigStart,
		ConfigSize:        c.Flash.ConfigSize,
		LookupStart:       c.Flash.LookupStart,
		GlobalConfigStart: c.Flash.GlobalConfigStart,
		GlobalConfigSize:  c.Flash.GlobalConfigSize,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	err := c.Layout().Validate()
	if err != nil {
		return err
	}

	if c.Flash.BlockSize == 0 || c.Flash.BlockSize%c.Flash.PageSize != 0 {
		return errors.New("flash block size must be a non-zero multiple of the page size")
	}

	if c.Download.MaxSize <= 0 {
		return errors.New("download max size must be positive")
	}

	if c.Download.PollWait <= 0 || c.TickInterval <= 0 {
		return errors.New("poll wait and tick interval must be positive")
	}

	if c.AppsFolder == "" || c.StatePath == "" || c.SocketPath == "" || c.FlashImage == "" {
		return errors.New("paths can't be empty")
	}

	return nil
}
