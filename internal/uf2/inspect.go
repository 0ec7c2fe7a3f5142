package uf2

import (
	"errors"
	"io"
	"slices"
)

// Summary describes the content of a UF2 image.
type Summary struct {
	Blocks        int      `json:"blocks"         yaml:"blocks"`
	ValidBlocks   int      `json:"valid_blocks"   yaml:"valid_blocks"`
	SkippedBlocks int      `json:"skipped_blocks" yaml:"skipped_blocks"`
	TrailingBytes int      `json:"trailing_bytes" yaml:"trailing_bytes"`
	PayloadBytes  uint64   `json:"payload_bytes"  yaml:"payload_bytes"`
	FirstAddress  uint32   `json:"first_address"  yaml:"first_address"`
	LastAddress   uint32   `json:"last_address"   yaml:"last_address"`
	DeclaredCount uint32   `json:"declared_count" yaml:"declared_count"`
	FamilyIDs     []uint32 `json:"family_ids"     yaml:"family_ids"`
}

// Inspect walks a UF2 image and summarizes it without writing anything.
func Inspect(r io.Reader) (Summary, error) {
	summary := Summary{}
	block := make([]byte, BlockSize)

	for {
		n, err := io.ReadFull(r, block)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			if errors.Is(err, io.ErrUnexpectedEOF) {
				summary.TrailingBytes = n

				break
			}

			return summary, err
		}

		summary.Blocks++

		b, err := ParseBlock(block)
		if err != nil {
			summary.SkippedBlocks++

			continue
		}

		if summary.ValidBlocks == 0 || b.TargetAddr < summary.FirstAddress {
			summary.FirstAddress = b.TargetAddr
		}

		end := b.TargetAddr + b.PayloadSize
		if end > summary.LastAddress {
			summary.LastAddress = end
		}

		summary.ValidBlocks++
		summary.PayloadBytes += uint64(b.PayloadSize)
		summary.DeclaredCount = b.NumBlocks

		if b.Flags&FlagFamilyIDPresent != 0 && !slices.Contains(summary.FamilyIDs, b.FamilyID) {
			summary.FamilyIDs = append(summary.FamilyIDs, b.FamilyID)
		}
	}

	return summary, nil
}
