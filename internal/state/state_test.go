package state_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidecartridge/booster/boosterd/internal/state"
)

var goldEncoding = `#Version: 0
Settings[APPS_FOLDER]: /apps
Settings[BOOT_FEATURE]: 3f2504e0-4f89-41d3-9a0c-0305e82c3301
Installs[3f2504e0-4f89-41d3-9a0c-0305e82c3301].Version: v1.0.0
Installs[3f2504e0-4f89-41d3-9a0c-0305e82c3301].MD5: 0123456789abcdef0123456789abcdef
Installs[3f2504e0-4f89-41d3-9a0c-0305e82c3301].Slot: 2
`

// Test basic custom decoding/encoding of state.
func TestCustomEncoding(t *testing.T) {
	t.Parallel()

	var s state.State

	err := state.Decode([]byte(goldEncoding), nil, &s)
	require.NoError(t, err)
	require.Equal(t, "/apps", s.Get(state.SettingAppsFolder))
	require.Equal(t, uint16(2), s.Installs["3f2504e0-4f89-41d3-9a0c-0305e82c3301"].Slot)

	content, err := state.Encode(&s)
	require.NoError(t, err)

	require.Equal(t, goldEncoding, string(content))
	require.Equal(t, 0, s.StateVersion)
}

func TestMalformedEncoding(t *testing.T) {
	t.Parallel()

	var s state.State

	require.Error(t, state.Decode([]byte("#Version: 0\nSettings[X]\n"), nil, &s))
	require.Error(t, state.Decode([]byte("#Version: 0\nUnknown: x\n"), nil, &s))
	require.Error(t, state.Decode([]byte("#Version: 0\nInstalls[a].Slot: 70000\n"), nil, &s))
	require.Error(t, state.Decode([]byte("#Version: x\n"), nil, &s))
}

func TestUpgrades(t *testing.T) {
	t.Parallel()

	upgrades := state.UpgradeFuncs{
		// V1: BOOT_APP renamed to BOOT_FEATURE.
		func(lines []string) ([]string, error) {
			for i := range lines {
				lines[i] = strings.Replace(lines[i], "Settings[BOOT_APP]", "Settings[BOOT_FEATURE]", 1)
			}

			return lines, nil
		},
	}

	var s state.State

	err := state.Decode([]byte("#Version: 0\nSettings[BOOT_APP]: abc\n"), upgrades, &s)
	require.NoError(t, err)
	require.Equal(t, 1, s.StateVersion)
	require.Equal(t, "abc", s.Get(state.SettingBootFeature))

	// Already upgraded states are left alone.
	var s2 state.State

	err = state.Decode([]byte("#Version: 1\nSettings[BOOT_APP]: abc\n"), upgrades, &s2)
	require.NoError(t, err)
	require.Empty(t, s2.Get(state.SettingBootFeature))
}

func TestLoadOrCreate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "settings.txt")

	s, err := state.LoadOrCreate(path, map[string]string{state.SettingAppsFolder: "/apps"})
	require.NoError(t, err)
	require.Equal(t, "/apps", s.Get(state.SettingAppsFolder))

	_, err = os.Stat(path)
	require.NoError(t, err)

	s.Put(state.SettingBootFeature, "3f2504e0-4f89-41d3-9a0c-0305e82c3301")
	s.RecordInstall("3f2504e0-4f89-41d3-9a0c-0305e82c3301", state.Install{Version: "v1", Slot: 1})
	require.NoError(t, s.Save())

	// Defaults don't override an existing file.
	loaded, err := state.LoadOrCreate(path, map[string]string{state.SettingAppsFolder: "/other"})
	require.NoError(t, err)
	require.Equal(t, "/apps", loaded.Get(state.SettingAppsFolder))
	require.Equal(t, "3f2504e0-4f89-41d3-9a0c-0305e82c3301", loaded.Get(state.SettingBootFeature))
	require.Equal(t, "v1", loaded.Installs["3f2504e0-4f89-41d3-9a0c-0305e82c3301"].Version)

	loaded.ForgetInstall("3f2504e0-4f89-41d3-9a0c-0305e82c3301")
	require.Empty(t, loaded.Installs)
}

func TestGetOr(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.txt")

	s, err := state.LoadOrCreate(path, map[string]string{state.SettingAppsFolder: "/srv/apps"})
	require.NoError(t, err)

	// The stored apps folder wins over the configured one.
	require.Equal(t, "/srv/apps", s.GetOr(state.SettingAppsFolder, "/mnt/sdcard/apps"))
	require.Equal(t, "/mnt/sdcard/apps", s.GetOr(state.SettingBootFeature, "/mnt/sdcard/apps"))

	s.Put(state.SettingAppsFolder, "")
	require.Equal(t, "/mnt/sdcard/apps", s.GetOr(state.SettingAppsFolder, "/mnt/sdcard/apps"))
}
