package applications

import (
	"encoding/hex"

	"github.com/sidecartridge/booster/boosterd/api"
)

const (
	// MaxListItems is the maximum number of tags or devices kept from a descriptor.
	MaxListItems = 6

	// MaxDescriptorSize is the maximum number of bytes read from a descriptor file.
	MaxDescriptorSize = 4095

	// StagingDescriptor is the name of the descriptor being installed.
	StagingDescriptor = "tmp.json"

	// StagingBinary is the name of the binary being downloaded.
	StagingBinary = "tmp.download"

	// CatalogIndex is the catalog index file, never treated as a descriptor.
	CatalogIndex = "apps.json"
)

// Descriptor is the metadata of an installable application.
type Descriptor struct {
	UUID        string
	Name        string
	Description string
	Image       string
	Tags        []string
	Devices     []string
	Binary      string
	MD5         [16]byte
	Version     string

	// JSON is the payload the descriptor was parsed from, kept verbatim.
	JSON []byte

	// FileMD5 is the digest of the downloaded binary, once computed.
	FileMD5 [16]byte
}

// DescriptorName returns the file name of an application descriptor.
func DescriptorName(id string) string {
	return id + ".json"
}

// BinaryName returns the file name of an application binary.
func BinaryName(id string) string {
	return id + ".uf2"
}

// API returns the public representation of the descriptor.
func (d *Descriptor) API() api.Application {
	return api.Application{
		UUID:        d.UUID,
		Name:        d.Name,
		Description: d.Description,
		Image:       d.Image,
		Tags:        d.Tags,
		Devices:     d.Devices,
		Binary:      d.Binary,
		MD5:         hex.EncodeToString(d.MD5[:]),
		Version:     d.Version,
	}
}
