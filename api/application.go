package api

// Application represents an application descriptor as found in the apps folder.
type Application struct {
	UUID        string   `json:"uuid"        yaml:"uuid"`
	Name        string   `json:"name"        yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Image       string   `json:"image"       yaml:"image"`
	Tags        []string `json:"tags"        yaml:"tags"`
	Devices     []string `json:"devices"     yaml:"devices"`
	Binary      string   `json:"binary"      yaml:"binary"`
	MD5         string   `json:"md5"         yaml:"md5"`
	Version     string   `json:"version"     yaml:"version"`

	// Installed is set when the application has a configuration slot.
	Installed bool   `json:"installed"      yaml:"installed"`
	Slot      *int32 `json:"slot,omitempty" yaml:"slot,omitempty"`
}

// ApplicationPost is the request body used to stage a new application download.
//
// Either Descriptor (raw JSON) or Encoded (base64 of the JSON) must be set.
type ApplicationPost struct {
	Descriptor map[string]any `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	Encoded    string         `json:"encoded,omitempty"    yaml:"encoded,omitempty"`
}
