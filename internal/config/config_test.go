package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sidecartridge/booster/boosterd/internal/config"
	"github.com/sidecartridge/booster/boosterd/internal/flash"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apps_folder: /srv/apps\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/apps", cfg.AppsFolder)
	require.Equal(t, int64(1048576), cfg.Download.MaxSize)
	require.Equal(t, 3*time.Second, cfg.Download.StartDelay)
	require.Equal(t, 5*time.Second, cfg.Launch.Delay)
	require.Equal(t, flash.DefaultLayout(), cfg.Layout())
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
flash_image: /tmp/flash.img
download:
  timeout: 30s
  max_size: 2048
launch:
  reset_command: systemctl reboot
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/flash.img", cfg.FlashImage)
	require.Equal(t, 30*time.Second, cfg.Download.Timeout)
	require.Equal(t, int64(2048), cfg.Download.MaxSize)
	require.Equal(t, "systemctl reboot", cfg.Launch.ResetCommand)
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flash:\n  config_start: 1048576\n"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("BOOSTER_APPS_FOLDER", "/env/apps")
	t.Setenv("BOOSTER_DOWNLOAD_TIMEOUT", "1m")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "/env/apps", cfg.AppsFolder)
	require.Equal(t, time.Minute, cfg.Download.Timeout)
}
