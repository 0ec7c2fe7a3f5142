package install_test

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/sidecartridge/booster/boosterd/internal/applications"
	"github.com/sidecartridge/booster/boosterd/internal/flash"
	"github.com/sidecartridge/booster/boosterd/internal/install"
	"github.com/sidecartridge/booster/boosterd/internal/lookup"
	"github.com/sidecartridge/booster/boosterd/internal/providers"
	"github.com/sidecartridge/booster/boosterd/internal/storage"
)

const (
	appID   = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	otherID = "9b2c6a1e-2f3d-4e5a-8b7c-1d2e3f4a5b6c"
)

type fixture struct {
	fs      afero.Fs
	store   *applications.Store
	dev     *flash.Memory
	layout  flash.Layout
	lookups *lookup.Store
	server  *httptest.Server
	payload []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		fs:      afero.NewMemMapFs(),
		layout:  flash.DefaultLayout(),
		payload: bytes.Repeat([]byte("booster"), 3000),
	}

	require.NoError(t, f.fs.MkdirAll("/apps", 0o755))

	f.store = applications.NewStore(f.fs, "/apps")
	f.dev = flash.NewMemory(f.layout.Size(), f.layout.Geometry)
	f.lookups = lookup.NewStore(f.dev, f.layout)

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app.uf2" {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(f.payload)))
		_, _ = w.Write(f.payload)
	}))

	t.Cleanup(f.server.Close)

	return f
}

func (f *fixture) descriptor(id string, binary string, sum []byte) []byte {
	return fmt.Appendf(nil, `{"uuid": %q, "name": "Demo", "version": "v1", "binary": %q, "md5": %q}`, id, binary, hex.EncodeToString(sum))
}

func (f *fixture) save(t *testing.T, id string, path string, sum []byte) {
	t.Helper()

	_, err := f.store.Save(f.descriptor(id, f.server.URL+path, sum))
	require.NoError(t, err)
}

func (f *fixture) installer(opts ...install.Option) *install.Installer {
	return install.New(f.store, f.lookups, f.dev, f.layout, providers.NewRegistry(f.server.Client(), ""), opts...)
}

func (f *fixture) sum() []byte {
	sum := md5.Sum(f.payload) //nolint:gosec

	return sum[:]
}

func download(t *testing.T, inst *install.Installer) install.PollResult {
	t.Helper()

	require.NoError(t, inst.Request())
	require.NoError(t, inst.Start(context.Background()))

	deadline := time.Now().Add(10 * time.Second)

	for {
		res := inst.Poll()
		if res != install.PollContinue {
			return res
		}

		require.True(t, time.Now().Before(deadline), "download didn't complete")
	}
}

func TestInstall(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.save(t, appID, "/app.uf2", f.sum())

	// Dirty the first configuration sector.
	require.NoError(t, f.dev.Program(f.layout.ConfigStart, []byte{1, 2, 3, 4}))

	inst := f.installer()
	require.Equal(t, install.StatusIdle, inst.Status())

	require.Equal(t, install.PollCompleted, download(t, inst))
	require.Equal(t, install.StatusCompleted, inst.Status())
	require.Equal(t, int64(len(f.payload)), inst.State().Total)
	require.Equal(t, int64(len(f.payload)), inst.State().Received)

	// A completed download must be committed before the next request.
	require.ErrorIs(t, inst.Request(), install.ErrDownloadInProgress)
	require.ErrorIs(t, inst.Start(context.Background()), install.ErrDownloadInProgress)

	require.NoError(t, inst.Finish())
	require.Equal(t, int32(0), inst.Slot())
	require.True(t, inst.State().Persisted)

	table, err := f.lookups.Load()
	require.NoError(t, err)

	slot, ok := table.FindSlot(appID)
	require.True(t, ok)
	require.Equal(t, uint16(0), slot)

	sector := make([]byte, 4)
	_, err = f.dev.ReadAt(sector, int64(f.layout.ConfigStart))
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, sector)

	require.NoError(t, inst.Confirm())
	require.Equal(t, install.StatusIdle, inst.Status())

	binary, err := afero.ReadFile(f.fs, "/apps/"+applications.BinaryName(appID))
	require.NoError(t, err)
	require.Equal(t, f.payload, binary)

	exists, err := afero.Exists(f.fs, "/apps/"+applications.DescriptorName(appID))
	require.NoError(t, err)
	require.True(t, exists)

	for _, name := range []string{applications.StagingBinary, applications.StagingDescriptor} {
		exists, err = afero.Exists(f.fs, "/apps/"+name)
		require.NoError(t, err)
		require.False(t, exists)
	}

	// A second application gets the next slot.
	f.save(t, otherID, "/app.uf2", f.sum())
	require.Equal(t, install.PollCompleted, download(t, inst))
	require.NoError(t, inst.Finish())
	require.Equal(t, int32(1), inst.Slot())
}

func TestInstallMD5Mismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.save(t, appID, "/app.uf2", make([]byte, 16))

	inst := f.installer()
	require.Equal(t, install.PollCompleted, download(t, inst))

	err := inst.Finish()
	require.ErrorIs(t, err, install.ErrMD5Mismatch)
	require.Equal(t, "MD5 mismatch", install.ErrorString(err))

	table, err := f.lookups.Load()
	require.NoError(t, err)
	require.Zero(t, table.Len())

	require.NoError(t, inst.ConfirmFailed())
	require.Equal(t, install.StatusFailed, inst.Status())

	// The staging files are left for inspection.
	exists, err := afero.Exists(f.fs, "/apps/"+applications.StagingBinary)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestInstallHTTPFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.save(t, appID, "/missing.uf2", f.sum())

	inst := f.installer()
	require.Equal(t, install.PollCompleted, download(t, inst))
	require.Equal(t, install.StatusFailed, inst.Status())
	require.ErrorIs(t, inst.Err(), install.ErrHTTP)
	require.Equal(t, "failed", inst.State().Status)
	require.Equal(t, "HTTP error", inst.State().Error)

	require.ErrorIs(t, inst.Finish(), install.ErrForcedAbort)

	// A failed download can be requested again.
	require.NoError(t, inst.Request())
	require.Equal(t, install.StatusRequested, inst.Status())
	require.NoError(t, inst.Err())
}

func TestInstallTooLarge(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.save(t, appID, "/app.uf2", f.sum())

	inst := f.installer(install.WithMaxContentLength(1024))
	require.Equal(t, install.PollCompleted, download(t, inst))
	require.Equal(t, install.StatusFailed, inst.Status())
	require.ErrorIs(t, inst.Err(), install.ErrTooLarge)
}

func TestInstallTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	blocker := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-blocker
	}))

	t.Cleanup(func() {
		close(blocker)
		slow.Close()
	})

	_, err := f.store.Save(f.descriptor(appID, slow.URL+"/app.uf2", f.sum()))
	require.NoError(t, err)

	now := time.Now()
	clock := func() time.Time { return now }

	inst := install.New(f.store, f.lookups, f.dev, f.layout, providers.NewRegistry(slow.Client(), ""),
		install.WithTimeout(time.Minute), install.WithClock(clock), install.WithPollWait(10*time.Millisecond))

	require.NoError(t, inst.Request())
	require.NoError(t, inst.Start(context.Background()))
	require.Equal(t, install.PollContinue, inst.Poll())

	// Re-entering the pipeline is refused.
	require.ErrorIs(t, inst.Request(), install.ErrDownloadInProgress)
	require.ErrorIs(t, inst.Start(context.Background()), install.ErrDownloadInProgress)

	now = now.Add(2 * time.Minute)

	require.Equal(t, install.PollError, inst.Poll())
	require.ErrorIs(t, inst.Err(), install.ErrTimeout)
	require.Equal(t, install.StatusFailed, inst.Status())
	require.NoError(t, inst.ConfirmFailed())
}

func TestStartErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	inst := f.installer()

	// No descriptor.
	require.ErrorIs(t, inst.Start(context.Background()), install.ErrCannotStartDownload)

	_, err := f.store.Save(f.descriptor(appID, "not a url", f.sum()))
	require.NoError(t, err)
	require.ErrorIs(t, inst.Start(context.Background()), install.ErrCannotParseURL)

	_, err = f.store.Save(f.descriptor(appID, "ftp://host/app.uf2", f.sum()))
	require.NoError(t, err)
	require.ErrorIs(t, inst.Start(context.Background()), install.ErrCannotStartDownload)

	require.Equal(t, install.StatusIdle, inst.Status())

	table, err := f.lookups.Load()
	require.NoError(t, err)
	require.Zero(t, table.Len())
}

func TestDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	table, err := f.lookups.Load()
	require.NoError(t, err)
	require.NoError(t, table.Upsert(appID, 5))
	require.NoError(t, table.Upsert(otherID, 7))
	require.NoError(t, f.lookups.Persist(table))

	require.NoError(t, afero.WriteFile(f.fs, "/apps/"+applications.BinaryName(appID), []byte("bin"), 0o644))

	inst := f.installer()

	require.ErrorIs(t, inst.Delete("nope"), install.ErrNotUUID)

	// Unknown identifiers leave the table alone.
	err = inst.Delete("44444444-4444-4444-8444-444444444444")
	require.ErrorIs(t, err, lookup.ErrNotFound)

	table, err = f.lookups.Load()
	require.NoError(t, err)
	require.Equal(t, 2*lookup.EntrySize, table.Len())

	require.NoError(t, inst.Delete(appID))

	table, err = f.lookups.Load()
	require.NoError(t, err)
	require.Equal(t, lookup.EntrySize, table.Len())

	slot, ok := table.FindSlot(otherID)
	require.True(t, ok)
	require.Equal(t, uint16(7), slot)

	exists, err := afero.Exists(f.fs, "/apps/"+applications.BinaryName(appID))
	require.NoError(t, err)
	require.False(t, exists)

	// Storage must be ready.
	notReady := f.installer(install.WithStorage(func() storage.Info { return storage.Info{} }))
	require.ErrorIs(t, notReady.Delete(otherID), install.ErrStorageNotReady)
}

func TestErrorString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "No error", install.ErrorString(nil))
	require.Equal(t, "Cannot parse URL", install.ErrorString(fmt.Errorf("%w: bad", install.ErrCannotParseURL)))
	require.Equal(t, "Error parsing JSON", install.ErrorString(applications.ErrParseJSON))
	require.Equal(t, "Cannot save lookup table", install.ErrorString(&install.PersistError{Err: errors.New("flash")}))
	require.Equal(t, "something else", install.ErrorString(errors.New("something else")))
	require.Equal(t, "in_progress", install.StatusInProgress.String())
}
