package api

// DownloadState represents the state of the download and install state machine.
type DownloadState struct {
	Status      string `json:"status"                 yaml:"status"`
	Error       string `json:"error,omitempty"        yaml:"error,omitempty"`
	Application string `json:"application,omitempty"  yaml:"application,omitempty"`
	URL         string `json:"url,omitempty"          yaml:"url,omitempty"`
	Received    int64  `json:"received"               yaml:"received"`
	Total       int64  `json:"total"                  yaml:"total"`
	Persisted   bool   `json:"persisted"              yaml:"persisted"`
}
