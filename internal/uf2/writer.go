package uf2

import (
	"errors"
	"fmt"
	"io"

	"github.com/sidecartridge/booster/boosterd/internal/flash"
)

var (
	// ErrInvalidPageSize is returned when the page size isn't a non-zero multiple of the device page.
	ErrInvalidPageSize = errors.New("invalid page size")

	// ErrInvalidSize is returned when the target region is empty.
	ErrInvalidSize = errors.New("invalid region size")
)

// RegionError is returned when the target region doesn't fit in the device.
type RegionError struct {
	Address    uint32
	Size       uint32
	DeviceSize uint32
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("region 0x%08X+0x%X is outside of the %d bytes device", e.Address, e.Size, e.DeviceSize)
}

// Result summarizes a write.
type Result struct {
	// BytesWritten is the number of bytes programmed in the region.
	BytesWritten uint32

	// Blocks is the number of blocks read.
	Blocks int

	// BlocksSkipped is the number of blocks ignored for bad magic or payload size.
	BlocksSkipped int

	// Truncated is set when the image didn't fit in the region and the excess was dropped.
	Truncated bool
}

// Writer streams UF2 images into a flash region.
type Writer struct {
	dev    flash.Device
	config Config
}

// NewWriter returns a Writer for the device.
func NewWriter(dev flash.Device, opts ...Option) *Writer {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &Writer{
		dev:    dev,
		config: config,
	}
}

// Write erases [addr, addr+size) and fills it linearly with the payloads of the UF2 blocks
// read from r. Block target addresses are ignored.
//
// Payloads are accumulated into a pageSize buffer which is programmed whenever it fills up,
// never past the end of the region. A trailing partial block ends the stream.
func (w *Writer) Write(r io.Reader, addr uint32, size uint32, pageSize uint32) (Result, error) {
	devPage := w.dev.Geometry().PageSize
	if pageSize == 0 || devPage == 0 || pageSize%devPage != 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}

	if size == 0 {
		return Result{}, ErrInvalidSize
	}

	if uint64(addr)+uint64(size) > uint64(w.dev.Size()) {
		return Result{}, &RegionError{Address: addr, Size: size, DeviceSize: w.dev.Size()}
	}

	log := w.config.Logger

	log.Debug("Erasing flash region", "address", fmt.Sprintf("0x%08X", addr), "size", size)

	err := w.dev.Erase(addr, size)
	if err != nil {
		return Result{}, err
	}

	s := &session{
		writer: w,
		buf:    make([]byte, pageSize),
		cursor: addr,
		start:  addr,
		end:    addr + size,
	}

	block := make([]byte, BlockSize)

	for !s.result.Truncated {
		_, err := io.ReadFull(r, block)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}

			return s.result, err
		}

		s.result.Blocks++

		b, err := ParseBlock(block)
		if err != nil {
			log.Debug("Skipping UF2 block", "block", s.result.Blocks-1, "err", err)
			s.result.BlocksSkipped++

			continue
		}

		err = s.push(b.Payload)
		if err != nil {
			return s.result, err
		}
	}

	err = s.flush()
	if err != nil {
		return s.result, err
	}

	if s.result.Truncated {
		log.Warn("UF2 image truncated to the flash region", "size", size, "written", s.result.BytesWritten)
	}

	return s.result, nil
}

type session struct {
	writer *Writer
	buf    []byte
	filled int
	cursor uint32
	start  uint32
	end    uint32
	result Result
}

func (s *session) exhausted() bool {
	return s.cursor >= s.end
}

func (s *session) push(payload []byte) error {
	for len(payload) > 0 {
		if s.exhausted() {
			s.result.Truncated = true

			return nil
		}

		n := copy(s.buf[s.filled:], payload)
		s.filled += n
		payload = payload[n:]

		if s.filled == len(s.buf) {
			err := s.flush()
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// flush programs the buffered bytes at the cursor, clamped to the end of the region.
func (s *session) flush() error {
	if s.filled == 0 {
		return nil
	}

	n := uint32(s.filled) //nolint:gosec
	if remaining := s.end - s.cursor; n > remaining {
		n = remaining
		s.result.Truncated = true
	}

	if n > 0 {
		err := s.writer.dev.Program(s.cursor, s.buf[:n])
		if err != nil {
			return err
		}

		s.cursor += n
		s.result.BytesWritten += n
	}

	s.filled = 0

	if s.writer.config.ProgressCallback != nil {
		region := s.end - s.start
		s.writer.config.ProgressCallback(Progress{
			Blocks:       s.result.Blocks,
			BytesWritten: s.result.BytesWritten,
			RegionSize:   region,
			Percentage:   float64(s.result.BytesWritten) * 100 / float64(region),
		})
	}

	return nil
}
