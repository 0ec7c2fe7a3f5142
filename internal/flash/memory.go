package flash

import (
	"bytes"
	"io"
	"sync"
)

// Memory is an in-RAM flash device.
type Memory struct {
	mu       sync.Mutex
	data     []byte
	geometry Geometry
}

// NewMemory returns an erased in-RAM device of the given size.
func NewMemory(size uint32, geometry Geometry) *Memory {
	return &Memory{
		data:     bytes.Repeat([]byte{ErasedByte}, int(size)),
		geometry: geometry,
	}
}

// ReadAt reads from the device.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}

	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// Erase erases whole sectors.
func (m *Memory) Erase(offset uint32, size uint32) error {
	err := m.geometry.checkErase(m.Size(), offset, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := offset; i < offset+size; i++ {
		m.data[i] = ErasedByte
	}

	return nil
}

// Program writes data starting on a page boundary.
func (m *Memory) Program(offset uint32, data []byte) error {
	err := m.geometry.checkProgram(m.Size(), offset, len(data))
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	program(m.data[offset:], data)

	return nil
}

// Size returns the device size.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data)) //nolint:gosec
}

// Geometry returns the device geometry.
func (m *Memory) Geometry() Geometry {
	return m.geometry
}
