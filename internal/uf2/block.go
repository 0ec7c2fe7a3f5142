// Package uf2 handles UF2 firmware images and writes them into flash.
package uf2

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// BlockSize is the size of a UF2 block.
	BlockSize = 512

	// HeaderSize is the offset of the payload within a block.
	HeaderSize = 32

	// MaxPayloadSize is the largest payload a block can carry.
	MaxPayloadSize = 476

	// DefaultPayloadSize is the payload size used when encoding images.
	DefaultPayloadSize = 256

	// MagicStart0 is the first magic word.
	MagicStart0 = 0x0A324655

	// MagicStart1 is the second magic word.
	MagicStart1 = 0x9E5D5157

	// MagicEnd is the magic word closing every block.
	MagicEnd = 0x0AB16F30

	// FlagFamilyIDPresent marks the last header word as a family identifier.
	FlagFamilyIDPresent = 0x00002000

	// FlagNotMainFlash marks blocks that shouldn't be written to the main flash.
	FlagNotMainFlash = 0x00000001
)

var (
	// ErrShortBlock is returned when less than a full block is available.
	ErrShortBlock = errors.New("short UF2 block")

	// ErrBadMagic is returned when a block doesn't start with the UF2 magic words.
	ErrBadMagic = errors.New("bad UF2 magic")

	// ErrBadPayloadSize is returned when the payload size is zero or too large.
	ErrBadPayloadSize = errors.New("bad UF2 payload size")
)

// Block is a decoded UF2 block.
type Block struct {
	Flags       uint32
	TargetAddr  uint32
	PayloadSize uint32
	BlockNo     uint32
	NumBlocks   uint32
	FamilyID    uint32
	Payload     []byte
	EndMagic    bool
}

// ParseBlock decodes a 512 bytes block. The payload aliases the input buffer.
func ParseBlock(b []byte) (*Block, error) {
	if len(b) < BlockSize {
		return nil, ErrShortBlock
	}

	word := func(i int) uint32 {
		return binary.LittleEndian.Uint32(b[i*4:])
	}

	if word(0) != MagicStart0 || word(1) != MagicStart1 {
		return nil, ErrBadMagic
	}

	payloadSize := word(4)
	if payloadSize == 0 || payloadSize > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d", ErrBadPayloadSize, payloadSize)
	}

	return &Block{
		Flags:       word(2),
		TargetAddr:  word(3),
		PayloadSize: payloadSize,
		BlockNo:     word(5),
		NumBlocks:   word(6),
		FamilyID:    word(7),
		Payload:     b[HeaderSize : HeaderSize+payloadSize],
		EndMagic:    binary.LittleEndian.Uint32(b[BlockSize-4:]) == MagicEnd,
	}, nil
}

// Encode packs a binary into UF2 blocks of DefaultPayloadSize bytes targeting
// consecutive addresses from baseAddr. A zero familyID leaves the flag unset.
func Encode(data []byte, baseAddr uint32, familyID uint32) []byte {
	numBlocks := (len(data) + DefaultPayloadSize - 1) / DefaultPayloadSize
	out := make([]byte, 0, numBlocks*BlockSize)

	flags := uint32(0)
	if familyID != 0 {
		flags |= FlagFamilyIDPresent
	}

	for i := range numBlocks {
		chunk := data[i*DefaultPayloadSize : min((i+1)*DefaultPayloadSize, len(data))]

		block := make([]byte, BlockSize)
		binary.LittleEndian.PutUint32(block[0:], MagicStart0)
		binary.LittleEndian.PutUint32(block[4:], MagicStart1)
		binary.LittleEndian.PutUint32(block[8:], flags)
		binary.LittleEndian.PutUint32(block[12:], baseAddr+uint32(i*DefaultPayloadSize)) //nolint:gosec
		binary.LittleEndian.PutUint32(block[16:], uint32(len(chunk)))                    //nolint:gosec
		binary.LittleEndian.PutUint32(block[20:], uint32(i))                             //nolint:gosec
		binary.LittleEndian.PutUint32(block[24:], uint32(numBlocks))                     //nolint:gosec
		binary.LittleEndian.PutUint32(block[28:], familyID)
		copy(block[HeaderSize:], chunk)
		binary.LittleEndian.PutUint32(block[BlockSize-4:], MagicEnd)

		out = append(out, block...)
	}

	return out
}
