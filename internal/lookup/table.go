// Package lookup manages the flash lookup table mapping application identifiers
// to their configuration slots.
package lookup

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sidecartridge/booster/boosterd/internal/util"
)

const (
	// IDSize is the size of the identifier part of a record.
	IDSize = util.UUIDLength

	// EntrySize is the size of a packed record: the identifier followed by a little-endian uint16 slot.
	EntrySize = IDSize + 2
)

var (
	// ErrInvalidID is returned when an identifier isn't a valid UUID4.
	ErrInvalidID = errors.New("invalid application identifier")

	// ErrNotFound is returned when an identifier isn't in the table.
	ErrNotFound = errors.New("application not found in lookup table")

	// ErrTableFull is returned when there is no room left for a new record.
	ErrTableFull = errors.New("lookup table is full")

	// ErrSlotInUse is reported when a slot is already assigned to another identifier.
	ErrSlotInUse = errors.New("configuration slot already in use")
)

// Entry is a decoded lookup table record.
type Entry struct {
	ID   string
	Slot uint16
}

// Table is the in-RAM copy of the lookup table.
//
// The buffer is always one sector long and zero-filled past the valid prefix, so that
// persisting it leaves a zero terminator after the last record.
type Table struct {
	buf    []byte
	length int
}

// NewTable returns an empty table for the given sector size.
func NewTable(sectorSize uint32) *Table {
	return &Table{buf: make([]byte, sectorSize)}
}

// Len returns the size in bytes of the valid prefix.
func (t *Table) Len() int {
	return t.length
}

// Count returns the number of records.
func (t *Table) Count() int {
	return t.length / EntrySize
}

// Capacity returns the maximum number of records.
func (t *Table) Capacity() int {
	return len(t.buf) / EntrySize
}

// Bytes returns the valid prefix.
func (t *Table) Bytes() []byte {
	return t.buf[:t.length]
}

// Entries returns the decoded records, in table order.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, 0, t.Count())

	for i := range t.Count() {
		entries = append(entries, t.entry(i))
	}

	return entries
}

func (t *Table) record(i int) []byte {
	return t.buf[i*EntrySize : (i+1)*EntrySize]
}

func (t *Table) entry(i int) Entry {
	rec := t.record(i)

	return Entry{
		ID:   string(rec[:IDSize]),
		Slot: binary.LittleEndian.Uint16(rec[IDSize:]),
	}
}

func (t *Table) index(id string) int {
	for i := range t.Count() {
		if bytes.Equal(t.record(i)[:IDSize], []byte(id)) {
			return i
		}
	}

	return -1
}

// FindSlot returns the slot assigned to an identifier.
func (t *Table) FindSlot(id string) (uint16, bool) {
	i := t.index(id)
	if i < 0 {
		return 0, false
	}

	return t.entry(i).Slot, true
}

// Upsert assigns a slot to an identifier, overwriting any existing record for it or
// appending a new one at the end of the table. The slot isn't checked against other
// records, see SlotOwner.
func (t *Table) Upsert(id string, slot uint16) error {
	if !util.IsValidUUID4(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	i := t.index(id)
	if i < 0 {
		if t.Count() >= t.Capacity() {
			return ErrTableFull
		}

		i = t.Count()
		t.length += EntrySize
	}

	rec := t.record(i)
	copy(rec, id)
	binary.LittleEndian.PutUint16(rec[IDSize:], slot)

	return nil
}

// SlotOwner returns the first identifier assigned to a slot.
func (t *Table) SlotOwner(slot uint16) (string, bool) {
	for _, e := range t.Entries() {
		if e.Slot == slot {
			return e.ID, true
		}
	}

	return "", false
}

// Delete removes the record for an identifier and compacts the table.
func (t *Table) Delete(id string) error {
	if !util.IsValidUUID4(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	i := t.index(id)
	if i < 0 {
		return ErrNotFound
	}

	copy(t.buf[i*EntrySize:], t.buf[(i+1)*EntrySize:t.length])
	t.length -= EntrySize
	clear(t.buf[t.length : t.length+EntrySize])

	return nil
}

// FirstFreeSlot returns the lowest slot not used by any record.
func (t *Table) FirstFreeSlot() uint16 {
	used := make(map[uint16]bool, t.Count())
	for _, e := range t.Entries() {
		used[e.Slot] = true
	}

	// With N records at least one of 0..N is free.
	for candidate := range t.Count() + 1 {
		if !used[uint16(candidate)] { //nolint:gosec
			return uint16(candidate) //nolint:gosec
		}
	}

	return uint16(t.Count()) //nolint:gosec
}

// Print writes a human readable dump of the table.
func (t *Table) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Lookup table: %d entries, %d bytes\n", t.Count(), t.length)
	if err != nil {
		return err
	}

	for i, e := range t.Entries() {
		_, err = fmt.Fprintf(w, "[%03d] %s -> slot %d\n", i, e.ID, e.Slot)
		if err != nil {
			return err
		}
	}

	return nil
}
