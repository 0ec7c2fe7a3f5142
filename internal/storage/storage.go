// Package storage probes the removable storage holding the apps folder.
package storage

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/sidecartridge/booster/boosterd/api"
)

const mib = 1024 * 1024

// ErrNotReady is returned when the removable storage can't be queried.
var ErrNotReady = errors.New("storage not ready")

// Info describes the removable storage.
type Info struct {
	Ready           bool
	TotalSize       uint64
	FreeSpace       uint64
	AppsFolder      string
	AppsFolderFound bool
}

// Prober returns the current storage information.
type Prober func() Info

// API returns the public representation of the storage information.
func (i Info) API() api.StorageInfo {
	return api.StorageInfo{
		Ready:           i.Ready,
		TotalSizeMiB:    i.TotalSize / mib,
		FreeSpaceMiB:    i.FreeSpace / mib,
		AppsFolder:      i.AppsFolder,
		AppsFolderFound: i.AppsFolderFound,
	}
}

// Probe inspects the filesystem mounted at root and looks for the apps folder.
// The storage is ready when root can be queried.
func Probe(root string, appsFolder string) Info {
	info := Info{AppsFolder: appsFolder}

	var st unix.Statfs_t

	err := unix.Statfs(root, &st)
	if err != nil {
		return info
	}

	info.Ready = true
	info.TotalSize = st.Blocks * uint64(st.Bsize) //nolint:gosec
	info.FreeSpace = st.Bavail * uint64(st.Bsize) //nolint:gosec

	fi, err := os.Stat(appsFolder)
	info.AppsFolderFound = err == nil && fi.IsDir()

	return info
}

// StatfsProber returns a Prober calling Probe.
func StatfsProber(root string, appsFolder string) Prober {
	return func() Info {
		return Probe(root, appsFolder)
	}
}
