package flash

import (
	"errors"
	"fmt"
)

// Layout describes how the flash part is split between the application code region,
// the per-application configuration sectors, the lookup table sector and the global
// configuration.
type Layout struct {
	Geometry `yaml:",inline"`

	StorageStart      uint32 `json:"storage_start"       yaml:"storage_start"`
	StorageSize       uint32 `json:"storage_size"        yaml:"storage_size"`
	ConfigStart       uint32 `json:"config_start"        yaml:"config_start"`
	ConfigSize        uint32 `json:"config_size"         yaml:"config_size"`
	LookupStart       uint32 `json:"lookup_start"        yaml:"lookup_start"`
	GlobalConfigStart uint32 `json:"global_config_start" yaml:"global_config_start"`
	GlobalConfigSize  uint32 `json:"global_config_size"  yaml:"global_config_size"`
}

// DefaultLayout returns the layout of a 2MiB part with 1MiB reserved for the firmware.
func DefaultLayout() Layout {
	return Layout{
		Geometry: DefaultGeometry(),

		StorageStart:      0x100000,
		StorageSize:       0xC0000,
		ConfigStart:       0x1C0000,
		ConfigSize:        0x3E000,
		LookupStart:       0x1FE000,
		GlobalConfigStart: 0x1FF000,
		GlobalConfigSize:  DefaultSectorSize,
	}
}

// Size returns the minimum device size for the layout.
func (l Layout) Size() uint32 {
	return l.GlobalConfigStart + l.GlobalConfigSize
}

// Validate checks that every region is sector aligned and that regions don't overlap.
func (l Layout) Validate() error {
	if l.SectorSize == 0 || l.PageSize == 0 || l.SectorSize%l.PageSize != 0 {
		return errors.New("sector size must be a non-zero multiple of the page size")
	}

	regions := []struct {
		name  string
		start uint32
		size  uint32
	}{
		{"storage", l.StorageStart, l.StorageSize},
		{"config", l.ConfigStart, l.ConfigSize},
		{"lookup", l.LookupStart, l.SectorSize},
		{"global config", l.GlobalConfigStart, l.GlobalConfigSize},
	}

	var end uint64

	for _, r := range regions {
		if r.start%l.SectorSize != 0 || r.size%l.SectorSize != 0 {
			return fmt.Errorf("%s region isn't sector aligned", r.name)
		}

		if uint64(r.start) < end {
			return fmt.Errorf("%s region overlaps the previous region", r.name)
		}

		end = uint64(r.start) + uint64(r.size)
	}

	return nil
}

// ConfigSlots returns the number of per-application configuration sectors.
func (l Layout) ConfigSlots() uint32 {
	if l.SectorSize == 0 {
		return 0
	}

	return l.ConfigSize / l.SectorSize
}

// ConfigSectorOffset returns the device offset of the configuration sector for a slot.
func (l Layout) ConfigSectorOffset(slot uint16) (uint32, error) {
	if uint32(slot) >= l.ConfigSlots() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}

	return l.ConfigStart + uint32(slot)*l.SectorSize, nil
}
