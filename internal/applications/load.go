package applications

import (
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/sidecartridge/booster/boosterd/internal/util"
)

// Catalog iterates over the application descriptors in the apps folder.
type Catalog struct {
	fs     afero.Fs
	folder string

	names   []string
	pos     int
	started bool
}

// NewCatalog returns a Catalog for the apps folder.
func NewCatalog(fs afero.Fs, folder string) *Catalog {
	return &Catalog{
		fs:     fs,
		folder: folder,
	}
}

// First restarts the iteration and returns the first descriptor payload.
func (c *Catalog) First() ([]byte, bool) {
	c.names = nil
	c.pos = 0
	c.started = true

	entries, err := afero.ReadDir(c.fs, c.folder)
	if err != nil {
		return nil, false
	}

	for _, entry := range entries {
		if entry.IsDir() || !isDescriptorName(entry.Name()) {
			continue
		}

		c.names = append(c.names, entry.Name())
	}

	sort.Strings(c.names)

	return c.Next()
}

// Next returns the following descriptor payload. It returns false before First is called.
func (c *Catalog) Next() ([]byte, bool) {
	if !c.started {
		return nil, false
	}

	for c.pos < len(c.names) {
		name := c.names[c.pos]
		c.pos++

		payload, err := readDescriptor(c.fs, filepath.Join(c.folder, name))
		if err != nil {
			continue
		}

		return payload, true
	}

	c.started = false

	return nil, false
}

// List returns every parsable descriptor in the apps folder.
func (c *Catalog) List() []*Descriptor {
	descriptors := []*Descriptor{}

	for payload, ok := c.First(); ok; payload, ok = c.Next() {
		d, err := Parse(payload)
		if err != nil {
			continue
		}

		descriptors = append(descriptors, d)
	}

	return descriptors
}

func isDescriptorName(name string) bool {
	if strings.EqualFold(name, CatalogIndex) {
		return false
	}

	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, ".json") {
		return false
	}

	return len(strings.TrimSuffix(name, ext)) == util.UUIDLength
}

func readDescriptor(fs afero.Fs, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	return io.ReadAll(io.LimitReader(f, MaxDescriptorSize))
}
