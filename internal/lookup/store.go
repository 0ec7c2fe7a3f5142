package lookup

import (
	"errors"
	"io"
	"log/slog"

	"github.com/sidecartridge/booster/boosterd/internal/flash"
	"github.com/sidecartridge/booster/boosterd/internal/util"
)

// Store binds the lookup table to its flash sector.
type Store struct {
	dev    flash.Device
	layout flash.Layout
}

// NewStore returns a Store for the lookup sector described by the layout.
func NewStore(dev flash.Device, layout flash.Layout) *Store {
	return &Store{
		dev:    dev,
		layout: layout,
	}
}

// Load reads the lookup sector and returns the valid prefix of the table.
//
// Scanning stops at the first record with a zero first byte or an invalid identifier,
// anything past that point is ignored.
func (s *Store) Load() (*Table, error) {
	sector := make([]byte, s.layout.SectorSize)

	_, err := s.dev.ReadAt(sector, int64(s.layout.LookupStart))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	t := NewTable(s.layout.SectorSize)

	for off := 0; off+EntrySize <= len(sector); off += EntrySize {
		rec := sector[off : off+EntrySize]
		if rec[0] == 0 || !util.IsValidUUID4Bytes(rec) {
			break
		}

		copy(t.buf[off:], rec)
		t.length += EntrySize
	}

	return t, nil
}

// Persist replaces the lookup sector with the table.
//
// The sector is erased then the valid prefix is programmed rounded up to the next page,
// so at least one zeroed record follows the last valid one.
func (s *Store) Persist(t *Table) error {
	err := s.dev.Erase(s.layout.LookupStart, s.layout.SectorSize)
	if err != nil {
		return err
	}

	page := int(s.layout.PageSize)

	size := ((t.length / page) + 1) * page
	if size > len(t.buf) {
		size = len(t.buf)
	}

	err = s.dev.Program(s.layout.LookupStart, t.buf[:size])
	if err != nil {
		return err
	}

	slog.Debug("Lookup table persisted", "entries", t.Count(), "bytes", size)

	return nil
}

// Erase clears the lookup sector, forgetting every slot assignment.
func (s *Store) Erase() error {
	return s.dev.Erase(s.layout.LookupStart, s.layout.SectorSize)
}

// ConfigAddress returns the device offset of the configuration sector assigned to an application.
func (s *Store) ConfigAddress(id string) (uint32, error) {
	t, err := s.Load()
	if err != nil {
		return 0, err
	}

	slot, ok := t.FindSlot(id)
	if !ok {
		return 0, ErrNotFound
	}

	return s.layout.ConfigSectorOffset(slot)
}
