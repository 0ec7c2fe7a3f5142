package state

const (
	// SettingAppsFolder is the settings key of the apps folder.
	SettingAppsFolder = "APPS_FOLDER"

	// SettingBootFeature is the settings key of the application to boot into.
	SettingBootFeature = "BOOT_FEATURE"
)

// Install records an application installed through the download flow.
type Install struct {
	Version string
	MD5     string
	Slot    uint16
}

// State represents the on-disk persistent settings.
type State struct {
	path string

	StateVersion int `json:"-" state:"-"`

	Settings map[string]string  `json:"settings"`
	Installs map[string]Install `json:"installs"`
}
