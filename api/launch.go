package api

// LaunchState represents the state of the launch flow.
type LaunchState struct {
	Status      string `json:"status"                yaml:"status"`
	Application string `json:"application,omitempty" yaml:"application,omitempty"`
	Error       string `json:"error,omitempty"       yaml:"error,omitempty"`
}
