// Package flash provides the NOR flash device abstraction used to store
// application images, per-application configuration and the lookup table.
package flash

import (
	"errors"
	"fmt"
	"io"
)

const (
	// DefaultSectorSize is the erase granularity of the flash part.
	DefaultSectorSize = 4096

	// DefaultPageSize is the program granularity of the flash part.
	DefaultPageSize = 256

	// DefaultBlockSize is the large erase block size, used as the image writer page size.
	DefaultBlockSize = 65536

	// ErasedByte is the value of every byte after an erase.
	ErasedByte = 0xFF
)

var (
	// ErrUnaligned is returned when an erase or program isn't aligned to the device geometry.
	ErrUnaligned = errors.New("unaligned flash operation")

	// ErrOutOfRange is returned when an operation falls outside of the device.
	ErrOutOfRange = errors.New("flash operation out of range")

	// ErrInvalidSlot is returned when a configuration slot doesn't exist.
	ErrInvalidSlot = errors.New("invalid configuration slot")

	// ErrLocked is returned when the flash image is in use by another process.
	ErrLocked = errors.New("flash image is locked by another process")
)

// Device represents a NOR flash part.
//
// Erase sets whole sectors to 0xFF. Program can only clear bits and must start on a page
// boundary. Each Erase and Program call is atomic with respect to other calls on the device.
type Device interface {
	io.ReaderAt

	Erase(offset uint32, size uint32) error
	Program(offset uint32, data []byte) error
	Size() uint32
	Geometry() Geometry
}

// Geometry describes the erase and program granularity of a device.
type Geometry struct {
	SectorSize uint32 `json:"sector_size" yaml:"sector_size"`
	PageSize   uint32 `json:"page_size"   yaml:"page_size"`
}

// DefaultGeometry returns the geometry of the reference flash part.
func DefaultGeometry() Geometry {
	return Geometry{
		SectorSize: DefaultSectorSize,
		PageSize:   DefaultPageSize,
	}
}

func (g Geometry) checkErase(devSize uint32, offset uint32, size uint32) error {
	if g.SectorSize == 0 || offset%g.SectorSize != 0 || size%g.SectorSize != 0 {
		return fmt.Errorf("%w: erase of %d bytes at 0x%08X", ErrUnaligned, size, offset)
	}

	return checkRange(devSize, offset, size)
}

func (g Geometry) checkProgram(devSize uint32, offset uint32, size int) error {
	if g.PageSize == 0 || offset%g.PageSize != 0 {
		return fmt.Errorf("%w: program at 0x%08X", ErrUnaligned, offset)
	}

	return checkRange(devSize, offset, uint32(size)) //nolint:gosec
}

func checkRange(devSize uint32, offset uint32, size uint32) error {
	if uint64(offset)+uint64(size) > uint64(devSize) {
		return fmt.Errorf("%w: %d bytes at 0x%08X", ErrOutOfRange, size, offset)
	}

	return nil
}

// program applies NOR semantics: bits can only go from 1 to 0.
func program(dst []byte, src []byte) {
	for i, b := range src {
		dst[i] &= b
	}
}
