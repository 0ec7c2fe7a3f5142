// Package install drives the download, verification and commit of an application.
package install

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lxc/incus/v6/shared/revert"
	"github.com/spf13/afero"

	"github.com/sidecartridge/booster/boosterd/api"
	"github.com/sidecartridge/booster/boosterd/internal/applications"
	"github.com/sidecartridge/booster/boosterd/internal/flash"
	"github.com/sidecartridge/booster/boosterd/internal/lookup"
	"github.com/sidecartridge/booster/boosterd/internal/providers"
	"github.com/sidecartridge/booster/boosterd/internal/storage"
	"github.com/sidecartridge/booster/boosterd/internal/util"
)

// DefaultMaxContentLength is the largest binary accepted by default.
const DefaultMaxContentLength = 1024 * 1024

// ProviderLoader returns the provider handling a URL protocol.
type ProviderLoader interface {
	Load(protocol string) (providers.Provider, error)
}

// Option configures an Installer.
type Option func(*Installer)

// WithMaxContentLength sets the largest binary accepted.
func WithMaxContentLength(size int64) Option {
	return func(i *Installer) {
		i.maxContentLength = size
	}
}

// WithTimeout sets how long a download may run before it is cancelled. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(i *Installer) {
		i.timeout = timeout
	}
}

// WithPollWait sets how long a single Poll call waits for transfer events.
func WithPollWait(wait time.Duration) Option {
	return func(i *Installer) {
		i.pollWait = wait
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Installer) {
		i.now = now
	}
}

// WithStorage sets the storage prober consulted before deleting applications.
func WithStorage(prober storage.Prober) Option {
	return func(i *Installer) {
		i.storage = prober
	}
}

// Installer is the download and install state machine.
//
// It isn't safe for concurrent use, its owner serialises every call.
type Installer struct {
	store   *applications.Store
	lookups *lookup.Store
	dev     flash.Device
	layout  flash.Layout
	loader  ProviderLoader
	storage storage.Prober

	maxContentLength int64
	timeout          time.Duration
	pollWait         time.Duration
	now              func() time.Time

	status    Status
	err       error
	file      afero.File
	req       *providers.Request
	startedAt time.Time
	received  int64
	total     int64
	url       string
	slot      int32
	persisted bool
}

// New returns an idle Installer.
func New(store *applications.Store, lookups *lookup.Store, dev flash.Device, layout flash.Layout, loader ProviderLoader, opts ...Option) *Installer {
	i := &Installer{
		store:   store,
		lookups: lookups,
		dev:     dev,
		layout:  layout,
		loader:  loader,
		storage: func() storage.Info { return storage.Info{Ready: true} },

		maxContentLength: DefaultMaxContentLength,
		pollWait:         100 * time.Millisecond,
		now:              time.Now,

		total: -1,
		slot:  -1,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Status returns the current state.
func (i *Installer) Status() Status {
	return i.status
}

// SetStatus forces the current state.
func (i *Installer) SetStatus(status Status) {
	i.status = status
}

// Err returns the last error.
func (i *Installer) Err() error {
	return i.err
}

// SetErr records an error.
func (i *Installer) SetErr(err error) {
	i.err = err
}

// Slot returns the configuration slot assigned by the last Finish, or -1.
func (i *Installer) Slot() int32 {
	return i.slot
}

// State returns the public representation of the state machine.
func (i *Installer) State() api.DownloadState {
	state := api.DownloadState{
		Status:    i.status.String(),
		URL:       i.url,
		Received:  i.received,
		Total:     i.total,
		Persisted: i.persisted,
	}

	if i.err != nil {
		state.Error = ErrorString(i.err)
	}

	current := i.store.Current()
	if current != nil {
		state.Application = current.UUID
	}

	return state
}

// Request asks for the current descriptor to be downloaded.
//
// A completed download must be finished and confirmed first.
func (i *Installer) Request() error {
	switch i.status {
	case StatusIdle, StatusFailed:
	default:
		return ErrDownloadInProgress
	}

	i.status = StatusRequested
	i.err = nil
	i.received = 0
	i.total = -1
	i.url = ""
	i.slot = -1
	i.persisted = false

	return nil
}

// Start opens the staging binary and issues the request for the current descriptor.
//
// Nothing persistent is touched when Start fails.
func (i *Installer) Start(ctx context.Context) error {
	switch i.status {
	case StatusIdle, StatusRequested, StatusNotStarted:
	default:
		return ErrDownloadInProgress
	}

	d := i.store.Current()
	if d == nil {
		return fmt.Errorf("%w: no application descriptor", ErrCannotStartDownload)
	}

	file, err := i.openStaging()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}

	reverter := revert.New()
	defer reverter.Fail()

	reverter.Add(func() { _ = file.Close() })

	u, err := util.ParseURL(d.Binary)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotParseURL, err)
	}

	provider, err := i.loader.Load(u.Protocol)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotStartDownload, err)
	}

	i.file = file
	i.received = 0
	i.total = -1
	i.url = u.String()

	req, err := provider.Start(ctx, u, i.callbacks())
	if err != nil {
		i.file = nil

		return fmt.Errorf("%w: %w", ErrCannotStartDownload, err)
	}

	reverter.Success()

	i.req = req
	i.startedAt = i.now()
	i.status = StatusStarted

	slog.InfoContext(ctx, "Application download started", "uuid", d.UUID, "url", i.url)

	return nil
}

// openStaging creates or truncates the staging binary, removing it and retrying once
// when it can't be opened.
func (i *Installer) openStaging() (afero.File, error) {
	path := i.store.Path(applications.StagingBinary)
	flags := os.O_CREATE | os.O_TRUNC | os.O_WRONLY

	file, err := i.store.Fs().OpenFile(path, flags, 0o644)
	if err == nil {
		return file, nil
	}

	slog.Warn("Staging binary busy, recreating it", "path", path, "err", err)

	_ = i.store.Fs().Remove(path)

	return i.store.Fs().OpenFile(path, flags, 0o644)
}

func (i *Installer) callbacks() providers.Callbacks {
	return providers.Callbacks{
		Header: func(contentLength int64) error {
			if contentLength > i.maxContentLength {
				return fmt.Errorf("%w: %d bytes", ErrTooLarge, contentLength)
			}

			i.total = contentLength
			i.status = StatusInProgress

			return nil
		},
		Body: func(chunk []byte) error {
			if i.received+int64(len(chunk)) > i.maxContentLength {
				return fmt.Errorf("%w: more than %d bytes", ErrTooLarge, i.maxContentLength)
			}

			_, err := i.file.Write(chunk)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
			}

			i.received += int64(len(chunk))

			return nil
		},
		Result: func(res providers.Result) {
			if res.OK() {
				i.status = StatusCompleted

				return
			}

			i.status = StatusFailed

			switch {
			case errors.Is(res.Err, ErrTooLarge), errors.Is(res.Err, ErrCannotOpenFile):
				i.err = res.Err
			default:
				i.err = fmt.Errorf("%w: %w", ErrHTTP, res.Err)
			}
		},
	}
}

// Poll pumps the transfer until it completes.
func (i *Installer) Poll() PollResult {
	if i.req == nil {
		i.err = ErrCannotStartDownload

		return PollError
	}

	if i.timeout > 0 && i.now().Sub(i.startedAt) > i.timeout {
		i.req.Cancel()
		i.status = StatusFailed
		i.err = ErrTimeout

		return PollError
	}

	if !i.req.Poll(i.pollWait) {
		return PollContinue
	}

	// A cancelled request never reports a result.
	if i.status == StatusStarted || i.status == StatusInProgress {
		i.status = StatusFailed
		i.err = ErrForcedAbort
	}

	return PollCompleted
}

// Finish closes the staging binary, verifies its checksum and assigns the application
// a configuration slot.
//
// A mismatching checksum stops before the lookup table is touched. A lookup table that
// couldn't be written back is reported as a *PersistError once the remaining steps ran.
func (i *Installer) Finish() error {
	err := i.closeStaging()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotCloseFile, err)
	}

	if i.status != StatusCompleted {
		return ErrForcedAbort
	}

	d := i.store.Current()
	if d == nil {
		return ErrForcedAbort
	}

	sum, err := i.checksum()
	if err != nil {
		return err
	}

	d.FileMD5 = sum

	if !bytes.Equal(sum[:], d.MD5[:]) {
		slog.Warn("Application checksum mismatch", "uuid", d.UUID, "expected", fmt.Sprintf("%x", d.MD5), "got", fmt.Sprintf("%x", sum))

		return ErrMD5Mismatch
	}

	table, err := i.lookups.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotCreateConfig, err)
	}

	slot := table.FirstFreeSlot()
	if uint32(slot) >= i.layout.ConfigSlots() {
		return fmt.Errorf("%w: no free configuration slot", ErrCannotCreateConfig)
	}

	err = table.Upsert(d.UUID, slot)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotCreateConfig, err)
	}

	var persistErr error

	err = i.lookups.Persist(table)
	if err != nil {
		slog.Error("Failed to persist lookup table", "uuid", d.UUID, "err", err)

		persistErr = &PersistError{Err: err}
	}

	i.persisted = persistErr == nil
	i.slot = int32(slot)

	offset, err := i.layout.ConfigSectorOffset(slot)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotDeleteConfigSector, err)
	}

	err = i.dev.Erase(offset, i.layout.SectorSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotDeleteConfigSector, err)
	}

	slog.Info("Application configuration slot assigned", "uuid", d.UUID, "slot", slot, "address", fmt.Sprintf("0x%08x", offset))

	return persistErr
}

func (i *Installer) checksum() ([16]byte, error) {
	var sum [16]byte

	file, err := i.store.Fs().Open(i.store.Path(applications.StagingBinary))
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}

	defer file.Close()

	h := md5.New() //nolint:gosec

	_, err = io.Copy(h, file)
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrCannotReadFile, err)
	}

	copy(sum[:], h.Sum(nil))

	return sum, nil
}

func (i *Installer) closeStaging() error {
	if i.file == nil {
		return nil
	}

	err := i.file.Close()
	i.file = nil

	return err
}

// Confirm commits the staged descriptor and binary under the application identifier and
// returns the state machine to Idle.
func (i *Installer) Confirm() error {
	d := i.store.Current()
	if d == nil {
		return fmt.Errorf("%w: no application descriptor", ErrCannotRenameFile)
	}

	fs := i.store.Fs()
	descriptor := i.store.Path(applications.DescriptorName(d.UUID))
	binary := i.store.Path(applications.BinaryName(d.UUID))

	_ = fs.Remove(descriptor)
	_ = fs.Remove(binary)

	reverter := revert.New()
	defer reverter.Fail()

	err := fs.Rename(i.store.Path(applications.StagingDescriptor), descriptor)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotRenameFile, err)
	}

	reverter.Add(func() { _ = fs.Rename(descriptor, i.store.Path(applications.StagingDescriptor)) })

	err = fs.Rename(i.store.Path(applications.StagingBinary), binary)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotRenameFile, err)
	}

	reverter.Success()

	i.status = StatusIdle

	slog.Info("Application installed", "uuid", d.UUID, "name", d.Name, "version", d.Version)

	return nil
}

// ConfirmFailed releases a failed download. Files and the lookup table are left as they are.
func (i *Installer) ConfirmFailed() error {
	if i.req != nil && !i.req.Complete() {
		i.req.Cancel()
	}

	i.req = nil
	i.status = StatusFailed

	err := i.closeStaging()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotCloseFile, err)
	}

	return nil
}

// Delete removes an installed application and its lookup table entry.
func (i *Installer) Delete(id string) error {
	if !util.IsValidUUID4(id) {
		return ErrNotUUID
	}

	if !i.storage().Ready {
		return ErrStorageNotReady
	}

	// A missing file isn't a failure.
	_ = i.store.Fs().Remove(i.store.Path(applications.DescriptorName(id)))
	_ = i.store.Fs().Remove(i.store.Path(applications.BinaryName(id)))

	table, err := i.lookups.Load()
	if err != nil {
		return err
	}

	err = table.Delete(id)
	if err != nil {
		return err
	}

	err = i.lookups.Persist(table)
	if err != nil {
		slog.Error("Failed to persist lookup table", "uuid", id, "err", err)

		return &PersistError{Err: err}
	}

	slog.Info("Application deleted", "uuid", id)

	return nil
}
