package lookup_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sidecartridge/booster/boosterd/internal/flash"
	"github.com/sidecartridge/booster/boosterd/internal/lookup"
)

const (
	appA = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	appB = "9b2c6a1e-2f3d-4e5a-8b7c-1d2e3f4a5b6c"
	appC = "c0ffee00-1234-4abc-a123-456789abcdef"
)

func newStore(t *testing.T) (*lookup.Store, *flash.Memory, flash.Layout) {
	t.Helper()

	layout := flash.DefaultLayout()
	dev := flash.NewMemory(layout.Size(), layout.Geometry)

	return lookup.NewStore(dev, layout), dev, layout
}

func TestEmptyTable(t *testing.T) {
	t.Parallel()

	store, _, _ := newStore(t)

	// An erased sector has no valid records.
	table, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, 0, table.Len())
	require.Empty(t, table.Entries())
	require.Equal(t, uint16(0), table.FirstFreeSlot())

	_, ok := table.FindSlot(appA)
	require.False(t, ok)
}

func TestUpsertAndFind(t *testing.T) {
	t.Parallel()

	table := lookup.NewTable(flash.DefaultSectorSize)

	require.NoError(t, table.Upsert(appA, 0))
	require.NoError(t, table.Upsert(appB, 2))
	require.Equal(t, 2*lookup.EntrySize, table.Len())

	slot, ok := table.FindSlot(appB)
	require.True(t, ok)
	require.Equal(t, uint16(2), slot)

	// Overwrite keeps the position and the length.
	require.NoError(t, table.Upsert(appA, 5))
	require.Equal(t, 2*lookup.EntrySize, table.Len())
	require.Equal(t, []lookup.Entry{{ID: appA, Slot: 5}, {ID: appB, Slot: 2}}, table.Entries())

	// Slot is little-endian after the identifier.
	raw := table.Bytes()
	require.Equal(t, []byte{5, 0}, raw[lookup.IDSize:lookup.EntrySize])

	require.ErrorIs(t, table.Upsert("not-a-uuid", 1), lookup.ErrInvalidID)

	// Slots aren't policed by the table itself.
	owner, ok := table.SlotOwner(2)
	require.True(t, ok)
	require.Equal(t, appB, owner)

	require.NoError(t, table.Upsert(appC, 2))
	require.Equal(t, 3*lookup.EntrySize, table.Len())

	_, ok = table.SlotOwner(9)
	require.False(t, ok)
}

func TestFirstFreeSlot(t *testing.T) {
	t.Parallel()

	table := lookup.NewTable(flash.DefaultSectorSize)
	require.Equal(t, uint16(0), table.FirstFreeSlot())

	require.NoError(t, table.Upsert(appA, 0))
	require.NoError(t, table.Upsert(appB, 2))
	require.Equal(t, uint16(1), table.FirstFreeSlot())

	require.NoError(t, table.Upsert(appC, 1))
	require.Equal(t, uint16(3), table.FirstFreeSlot())
}

func TestDelete(t *testing.T) {
	t.Parallel()

	table := lookup.NewTable(flash.DefaultSectorSize)
	require.NoError(t, table.Upsert(appA, 0))
	require.NoError(t, table.Upsert(appB, 1))
	require.NoError(t, table.Upsert(appC, 2))

	// Deleting the middle record shifts the following ones down.
	require.NoError(t, table.Delete(appB))
	require.Equal(t, 2*lookup.EntrySize, table.Len())
	require.Equal(t, []lookup.Entry{{ID: appA, Slot: 0}, {ID: appC, Slot: 2}}, table.Entries())

	_, ok := table.FindSlot(appB)
	require.False(t, ok)

	// Unknown identifiers leave the table untouched.
	require.ErrorIs(t, table.Delete(appB), lookup.ErrNotFound)
	require.Equal(t, 2*lookup.EntrySize, table.Len())

	require.ErrorIs(t, table.Delete("garbage"), lookup.ErrInvalidID)

	require.NoError(t, table.Delete(appA))
	require.NoError(t, table.Delete(appC))
	require.Equal(t, 0, table.Len())
	require.Equal(t, uint16(0), table.FirstFreeSlot())
}

func TestPersistLoad(t *testing.T) {
	t.Parallel()

	store, dev, layout := newStore(t)

	table, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, table.Upsert(appA, 0))
	require.NoError(t, table.Upsert(appB, 3))
	require.NoError(t, store.Persist(table))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, table.Bytes(), loaded.Bytes())
	require.Equal(t, table.Entries(), loaded.Entries())

	// A zero terminator follows the last record.
	terminator := make([]byte, lookup.EntrySize)
	_, err = dev.ReadAt(terminator, int64(layout.LookupStart)+int64(table.Len()))
	require.NoError(t, err)
	require.Equal(t, make([]byte, lookup.EntrySize), terminator)

	// Persisting the loaded copy is idempotent.
	require.NoError(t, store.Persist(loaded))

	again, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, loaded.Bytes(), again.Bytes())
}

func TestLoadStopsAtGarbage(t *testing.T) {
	t.Parallel()

	store, dev, layout := newStore(t)

	record := append([]byte(appA), 0x07, 0x00)
	garbage := bytes.Repeat([]byte("x"), lookup.EntrySize)
	trailing := append([]byte(appB), 0x01, 0x00)

	data := append(append(append([]byte{}, record...), garbage...), trailing...)
	require.NoError(t, dev.Program(layout.LookupStart, data))

	table, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, lookup.EntrySize, table.Len())
	require.Equal(t, []lookup.Entry{{ID: appA, Slot: 7}}, table.Entries())
}

func TestTableFull(t *testing.T) {
	t.Parallel()

	store, _, _ := newStore(t)

	table := lookup.NewTable(flash.DefaultSectorSize)
	for i := range table.Capacity() {
		require.NoError(t, table.Upsert(uuid.NewString(), uint16(i))) //nolint:gosec
	}

	require.ErrorIs(t, table.Upsert(uuid.NewString(), 999), lookup.ErrTableFull)

	// A full table still fits in the sector.
	require.NoError(t, store.Persist(table))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, table.Capacity(), loaded.Count())
}

func TestConfigAddress(t *testing.T) {
	t.Parallel()

	store, _, layout := newStore(t)

	table := lookup.NewTable(layout.SectorSize)
	require.NoError(t, table.Upsert(appA, 4))
	require.NoError(t, store.Persist(table))

	addr, err := store.ConfigAddress(appA)
	require.NoError(t, err)
	require.Equal(t, layout.ConfigStart+4*layout.SectorSize, addr)

	_, err = store.ConfigAddress(appB)
	require.ErrorIs(t, err, lookup.ErrNotFound)

	require.NoError(t, store.Erase())

	table, err = store.Load()
	require.NoError(t, err)
	require.Equal(t, 0, table.Len())
}

func TestPrint(t *testing.T) {
	t.Parallel()

	table := lookup.NewTable(flash.DefaultSectorSize)
	require.NoError(t, table.Upsert(appA, 0))

	var out strings.Builder
	require.NoError(t, table.Print(&out))
	require.Contains(t, out.String(), appA+" -> slot 0")
}
