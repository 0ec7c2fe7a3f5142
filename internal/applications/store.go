package applications

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrCannotWriteFile is returned when the staging descriptor can't be written.
var ErrCannotWriteFile = errors.New("cannot write descriptor file")

// Store holds the descriptor of the application currently being installed and
// gives access to the apps folder.
type Store struct {
	fs      afero.Fs
	folder  string
	current *Descriptor
}

// NewStore returns a Store for the apps folder.
func NewStore(fs afero.Fs, folder string) *Store {
	return &Store{
		fs:     fs,
		folder: folder,
	}
}

// Fs returns the filesystem holding the apps folder.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Path returns the path of a file in the apps folder.
func (s *Store) Path(name string) string {
	return filepath.Join(s.folder, name)
}

// Current returns the current descriptor, if any.
func (s *Store) Current() *Descriptor {
	return s.current
}

// Save parses a descriptor payload, makes it the current descriptor and writes it
// to the staging descriptor file, replacing any previous one.
func (s *Store) Save(payload []byte) (*Descriptor, error) {
	d, err := Parse(payload)
	if err != nil {
		return nil, err
	}

	path := s.Path(StagingDescriptor)

	err = s.fs.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrCannotWriteFile, err)
	}

	err = afero.WriteFile(s.fs, path, payload, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotWriteFile, err)
	}

	s.current = d

	return d, nil
}

// Load reads and parses the descriptor of an installed application.
func (s *Store) Load(id string) (*Descriptor, error) {
	payload, err := readDescriptor(s.fs, s.Path(DescriptorName(id)))
	if err != nil {
		return nil, err
	}

	return Parse(payload)
}
