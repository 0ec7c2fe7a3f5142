package flash

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/lxc/incus/v6/shared/revert"
	"golang.org/x/sys/unix"
)

// File is a flash device backed by an image file on disk.
type File struct {
	mu       sync.Mutex
	fd       *os.File
	size     uint32
	geometry Geometry
}

// OpenFile opens (or creates) a flash image of the given size and takes an exclusive
// lock on it. A new or short image is padded with erased bytes.
func OpenFile(path string, size uint32, geometry Geometry) (*File, error) {
	reverter := revert.New()
	defer reverter.Fail()

	// #nosec G304
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}

	reverter.Add(func() { _ = fd.Close() })

	err = unix.Flock(int(fd.Fd()), unix.LOCK_EX|unix.LOCK_NB) //nolint:gosec
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}

		return nil, fmt.Errorf("failed to lock flash image: %w", err)
	}

	info, err := fd.Stat()
	if err != nil {
		return nil, err
	}

	// Pad the image with erased bytes.
	if info.Size() < int64(size) {
		pad := bytes.Repeat([]byte{ErasedByte}, int(int64(size)-info.Size()))

		_, err = fd.WriteAt(pad, info.Size())
		if err != nil {
			return nil, err
		}

		err = fd.Sync()
		if err != nil {
			return nil, err
		}
	}

	reverter.Success()

	return &File{
		fd:       fd,
		size:     size,
		geometry: geometry,
	}, nil
}

// Close releases the lock and closes the image.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_ = unix.Flock(int(f.fd.Fd()), unix.LOCK_UN) //nolint:gosec

	return f.fd.Close()
}

// ReadAt reads from the image.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.fd.ReadAt(p, off)
}

// Erase erases whole sectors.
func (f *File) Erase(offset uint32, size uint32) error {
	err := f.geometry.checkErase(f.size, offset, size)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	_, err = f.fd.WriteAt(bytes.Repeat([]byte{ErasedByte}, int(size)), int64(offset))
	if err != nil {
		return err
	}

	return f.fd.Sync()
}

// Program writes data starting on a page boundary.
func (f *File) Program(offset uint32, data []byte) error {
	err := f.geometry.checkProgram(f.size, offset, len(data))
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current := make([]byte, len(data))

	_, err = f.fd.ReadAt(current, int64(offset))
	if err != nil {
		return err
	}

	program(current, data)

	_, err = f.fd.WriteAt(current, int64(offset))
	if err != nil {
		return err
	}

	return f.fd.Sync()
}

// Size returns the device size.
func (f *File) Size() uint32 {
	return f.size
}

// Geometry returns the device geometry.
func (f *File) Geometry() Geometry {
	return f.geometry
}
