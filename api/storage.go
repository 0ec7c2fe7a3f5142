package api

// StorageInfo represents the state of the removable storage holding the apps folder.
type StorageInfo struct {
	Ready           bool   `json:"ready"             yaml:"ready"`
	TotalSizeMiB    uint64 `json:"total_size_mib"    yaml:"total_size_mib"`
	FreeSpaceMiB    uint64 `json:"free_space_mib"    yaml:"free_space_mib"`
	AppsFolder      string `json:"apps_folder"       yaml:"apps_folder"`
	AppsFolderFound bool   `json:"apps_folder_found" yaml:"apps_folder_found"`
}
