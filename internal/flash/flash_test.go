package flash_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidecartridge/booster/boosterd/internal/flash"
)

func TestMemoryEraseProgram(t *testing.T) {
	t.Parallel()

	dev := flash.NewMemory(4*flash.DefaultSectorSize, flash.DefaultGeometry())

	// Program only clears bits.
	err := dev.Program(256, []byte{0x0F, 0xF0})
	require.NoError(t, err)

	err = dev.Program(256, []byte{0xFF, 0x3C})
	require.NoError(t, err)

	buf := make([]byte, 2)
	_, err = dev.ReadAt(buf, 256)
	require.NoError(t, err)
	require.Equal(t, []byte{0x0F, 0x30}, buf)

	// Erase restores the sector.
	err = dev.Erase(0, flash.DefaultSectorSize)
	require.NoError(t, err)

	_, err = dev.ReadAt(buf, 256)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xFF}, buf)
}

func TestMemoryAlignment(t *testing.T) {
	t.Parallel()

	dev := flash.NewMemory(2*flash.DefaultSectorSize, flash.DefaultGeometry())

	require.ErrorIs(t, dev.Erase(100, flash.DefaultSectorSize), flash.ErrUnaligned)
	require.ErrorIs(t, dev.Erase(0, 100), flash.ErrUnaligned)
	require.ErrorIs(t, dev.Program(10, []byte{0}), flash.ErrUnaligned)
	require.ErrorIs(t, dev.Erase(0, 3*flash.DefaultSectorSize), flash.ErrOutOfRange)
	require.ErrorIs(t, dev.Program(2*flash.DefaultSectorSize-256, make([]byte, 512)), flash.ErrOutOfRange)
}

func TestFileDevice(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "flash.img")

	dev, err := flash.OpenFile(path, 2*flash.DefaultSectorSize, flash.DefaultGeometry())
	require.NoError(t, err)

	// A second open must fail while the lock is held.
	_, err = flash.OpenFile(path, 2*flash.DefaultSectorSize, flash.DefaultGeometry())
	require.ErrorIs(t, err, flash.ErrLocked)

	err = dev.Program(flash.DefaultSectorSize, []byte("booster"))
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	// Data survives a reopen.
	dev, err = flash.OpenFile(path, 2*flash.DefaultSectorSize, flash.DefaultGeometry())
	require.NoError(t, err)

	defer dev.Close()

	buf := make([]byte, 8)
	_, err = dev.ReadAt(buf, flash.DefaultSectorSize)
	require.NoError(t, err)
	require.Equal(t, append([]byte("booster"), 0xFF), buf)

	err = dev.Erase(flash.DefaultSectorSize, flash.DefaultSectorSize)
	require.NoError(t, err)

	_, err = dev.ReadAt(buf, flash.DefaultSectorSize)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xFF}, 8), buf)
}

func TestLayout(t *testing.T) {
	t.Parallel()

	layout := flash.DefaultLayout()
	require.NoError(t, layout.Validate())
	require.Equal(t, uint32(0x200000), layout.Size())
	require.Equal(t, uint32(62), layout.ConfigSlots())

	offset, err := layout.ConfigSectorOffset(0)
	require.NoError(t, err)
	require.Equal(t, layout.ConfigStart, offset)

	offset, err = layout.ConfigSectorOffset(3)
	require.NoError(t, err)
	require.Equal(t, layout.ConfigStart+3*flash.DefaultSectorSize, offset)

	_, err = layout.ConfigSectorOffset(62)
	require.ErrorIs(t, err, flash.ErrInvalidSlot)

	layout.ConfigStart = layout.StorageStart
	require.Error(t, layout.Validate())
}
