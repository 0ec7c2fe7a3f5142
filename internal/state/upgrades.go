package state

// UpgradeFuncs is a list of functions to apply in order to upgrade the version of a given state.
// Each function consumes the lines of the encoded state and returns the upgraded lines.
type UpgradeFuncs []func([]string) ([]string, error)

// upgrades is a list of upgrade functions to process old states.
var upgrades = UpgradeFuncs{}
