package api

// LookupEntry represents one record of the flash lookup table.
type LookupEntry struct {
	UUID          string `json:"uuid"           yaml:"uuid"`
	Slot          uint16 `json:"slot"           yaml:"slot"`
	ConfigAddress uint32 `json:"config_address" yaml:"config_address"`
}

// Lookup represents the flash lookup table.
type Lookup struct {
	Entries  []LookupEntry `json:"entries"  yaml:"entries"`
	Capacity int           `json:"capacity" yaml:"capacity"`
	Bytes    int           `json:"bytes"    yaml:"bytes"`
}
