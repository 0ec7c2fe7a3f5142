// Package manager owns the application manager and drives it from a single control loop.
package manager

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/sidecartridge/booster/boosterd/api"
	"github.com/sidecartridge/booster/boosterd/internal/applications"
	"github.com/sidecartridge/booster/boosterd/internal/flash"
	"github.com/sidecartridge/booster/boosterd/internal/install"
	"github.com/sidecartridge/booster/boosterd/internal/launch"
	"github.com/sidecartridge/booster/boosterd/internal/lookup"
	"github.com/sidecartridge/booster/boosterd/internal/reset"
	"github.com/sidecartridge/booster/boosterd/internal/state"
	"github.com/sidecartridge/booster/boosterd/internal/storage"
	"github.com/sidecartridge/booster/boosterd/internal/util"
)

var (
	// ErrLaunchInProgress is returned when a launch is scheduled while another one runs.
	ErrLaunchInProgress = errors.New("launch already in progress")

	// ErrNotFound is returned when an application isn't in the apps folder.
	ErrNotFound = errors.New("application not found")
)

// Config holds the collaborators and timings of a Manager.
type Config struct {
	Fs         afero.Fs
	AppsFolder string
	Device     flash.Device
	Layout     flash.Layout
	Loader     install.ProviderLoader
	Settings   *state.State
	Resetter   reset.Resetter
	Prober     storage.Prober

	MaxContentLength int64
	DownloadTimeout  time.Duration
	StartDelay       time.Duration
	PollWait         time.Duration
	LaunchDelay      time.Duration

	// LaunchPageSize is the image writer page size, the flash block size by default.
	LaunchPageSize uint32

	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager serialises every access to the application manager behind one lock, shared by
// the control loop and the API handlers.
type Manager struct {
	mu sync.Mutex

	store     *applications.Store
	catalog   *applications.Catalog
	lookups   *lookup.Store
	layout    flash.Layout
	installer *install.Installer
	launcher  *launch.Launcher
	settings  *state.State
	prober    storage.Prober
	storage   storage.Info

	startDelay time.Duration
	startAt    time.Time
	now        func() time.Time
}

// New returns a Manager. The storage is probed once.
func New(cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Resetter == nil {
		cfg.Resetter = reset.Noop{}
	}

	m := &Manager{
		store:      applications.NewStore(cfg.Fs, cfg.AppsFolder),
		catalog:    applications.NewCatalog(cfg.Fs, cfg.AppsFolder),
		lookups:    lookup.NewStore(cfg.Device, cfg.Layout),
		layout:     cfg.Layout,
		settings:   cfg.Settings,
		prober:     cfg.Prober,
		startDelay: cfg.StartDelay,
		now:        cfg.Now,
	}

	if m.prober == nil {
		m.prober = func() storage.Info { return storage.Info{Ready: true, AppsFolder: cfg.AppsFolder, AppsFolderFound: true} }
	}

	ready := func() storage.Info { return m.storage }

	opts := []install.Option{
		install.WithTimeout(cfg.DownloadTimeout),
		install.WithClock(cfg.Now),
		install.WithStorage(ready),
	}

	if cfg.MaxContentLength > 0 {
		opts = append(opts, install.WithMaxContentLength(cfg.MaxContentLength))
	}

	if cfg.PollWait > 0 {
		opts = append(opts, install.WithPollWait(cfg.PollWait))
	}

	launchOpts := []launch.Option{
		launch.WithDelay(cfg.LaunchDelay),
		launch.WithStorage(ready),
	}

	if cfg.LaunchPageSize > 0 {
		launchOpts = append(launchOpts, launch.WithPageSize(cfg.LaunchPageSize))
	}

	m.installer = install.New(m.store, m.lookups, cfg.Device, cfg.Layout, cfg.Loader, opts...)
	m.launcher = launch.New(cfg.Fs, cfg.AppsFolder, cfg.Device, cfg.Layout, cfg.Settings, cfg.Resetter, launchOpts...)

	m.storage = m.prober()

	return m
}

// Tick advances the download and launch state machines by one step.
func (m *Manager) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	switch m.installer.Status() {
	case install.StatusRequested:
		m.installer.SetStatus(install.StatusNotStarted)
		m.startAt = now.Add(m.startDelay)
	case install.StatusNotStarted:
		if now.Before(m.startAt) {
			break
		}

		err := m.installer.Start(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to start application download", "err", err)
			m.fail(ctx, err)
		}
	case install.StatusStarted, install.StatusInProgress:
		switch m.installer.Poll() {
		case install.PollContinue:
		case install.PollError:
			slog.ErrorContext(ctx, "Application download failed", "err", m.installer.Err())
			m.fail(ctx, m.installer.Err())
		case install.PollCompleted:
			if m.installer.Status() == install.StatusFailed {
				slog.ErrorContext(ctx, "Application download failed", "err", m.installer.Err())
				m.fail(ctx, m.installer.Err())

				break
			}

			// Completed never outlives the tick that observed it.
			m.complete(ctx)
		}
	case install.StatusCompleted:
		m.complete(ctx)
	case install.StatusIdle, install.StatusFailed:
	}

	switch m.launcher.Status() {
	case launch.StatusScheduled:
		slog.InfoContext(ctx, "Application launch scheduled", "uuid", m.launcher.ID())
		m.launcher.Begin(now)
	case launch.StatusInProgress:
		if m.launcher.Due(now) {
			_ = m.launcher.Execute(ctx)
		}
	case launch.StatusIdle, launch.StatusOK, launch.StatusFailed:
	}
}

func (m *Manager) fail(ctx context.Context, err error) {
	m.installer.SetErr(err)

	cerr := m.installer.ConfirmFailed()
	if cerr != nil {
		slog.WarnContext(ctx, "Failed to release staging binary", "err", cerr)
	}
}

func (m *Manager) complete(ctx context.Context) {
	err := m.installer.Finish()

	var persistErr *install.PersistError
	if errors.As(err, &persistErr) {
		slog.WarnContext(ctx, "Lookup table not saved, continuing install", "err", err)
		m.installer.SetErr(err)
	} else if err != nil {
		slog.ErrorContext(ctx, "Failed to finish application download", "err", err)
		m.fail(ctx, err)

		return
	}

	err = m.installer.Confirm()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to commit application", "err", err)
		m.fail(ctx, err)

		return
	}

	d := m.store.Current()
	if m.settings != nil && d != nil && m.installer.Slot() >= 0 {
		m.settings.RecordInstall(d.UUID, state.Install{
			Version: d.Version,
			MD5:     hex.EncodeToString(d.MD5[:]),
			Slot:    uint16(m.installer.Slot()), //nolint:gosec
		})

		err = m.settings.Save()
		if err != nil {
			slog.WarnContext(ctx, "Failed to save settings", "err", err)
		}
	}
}

// RefreshStorage probes the storage again.
func (m *Manager) RefreshStorage() storage.Info {
	info := m.prober()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.storage = info

	return info
}

// Storage returns the last storage information.
func (m *Manager) Storage() storage.Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.storage
}

// CurrentApp returns the descriptor of the application being installed.
func (m *Manager) CurrentApp() (api.Application, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.store.Current()
	if d == nil {
		return api.Application{}, false
	}

	return d.API(), true
}

// SaveApp stages a descriptor for download.
func (m *Manager) SaveApp(payload []byte) (api.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.installer.Status() {
	case install.StatusIdle, install.StatusFailed:
	default:
		return api.Application{}, install.ErrDownloadInProgress
	}

	d, err := m.store.Save(payload)
	if err != nil {
		return api.Application{}, err
	}

	return d.API(), nil
}

// SaveAppBase64 stages a base64 encoded descriptor for download.
func (m *Manager) SaveAppBase64(encoded string) (api.Application, error) {
	encoded = strings.TrimSpace(encoded)

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		payload, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return api.Application{}, fmt.Errorf("%w: %w", install.ErrBase64, err)
		}
	}

	return m.SaveApp(payload)
}

// RequestDownload asks the control loop to download the staged descriptor.
func (m *Manager) RequestDownload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store.Current() == nil {
		return fmt.Errorf("%w: no application descriptor", install.ErrCannotStartDownload)
	}

	return m.installer.Request()
}

// DownloadState returns the download state machine.
func (m *Manager) DownloadState() api.DownloadState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.installer.State()
}

// DeleteApp removes an installed application.
func (m *Manager) DeleteApp(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.installer.Delete(id)

	var persistErr *install.PersistError
	if err != nil && !errors.As(err, &persistErr) {
		return err
	}

	if m.settings != nil {
		m.settings.ForgetInstall(id)

		serr := m.settings.Save()
		if serr != nil {
			slog.Warn("Failed to save settings", "err", serr)
		}
	}

	return err
}

// ListApps returns every application of the apps folder.
func (m *Manager) ListApps() ([]api.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.lookups.Load()
	if err != nil {
		return nil, err
	}

	descriptors := m.catalog.List()
	apps := make([]api.Application, 0, len(descriptors))

	for _, d := range descriptors {
		apps = append(apps, withSlot(d.API(), table))
	}

	return apps, nil
}

// GetApp returns an installed application.
func (m *Manager) GetApp(id string) (api.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !util.IsValidUUID4(id) {
		return api.Application{}, install.ErrNotUUID
	}

	d, err := m.store.Load(id)
	if err != nil {
		return api.Application{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	table, err := m.lookups.Load()
	if err != nil {
		return api.Application{}, err
	}

	return withSlot(d.API(), table), nil
}

func withSlot(app api.Application, table *lookup.Table) api.Application {
	slot, ok := table.FindSlot(app.UUID)
	if ok {
		s := int32(slot)
		app.Installed = true
		app.Slot = &s
	}

	return app
}

// First restarts the catalog iteration.
func (m *Manager) First() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.catalog.First()
}

// Next continues the catalog iteration.
func (m *Manager) Next() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.catalog.Next()
}

// ScheduleLaunch asks the control loop to launch an application.
func (m *Manager) ScheduleLaunch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.launcher.Status() {
	case launch.StatusScheduled, launch.StatusInProgress:
		return ErrLaunchInProgress
	case launch.StatusIdle, launch.StatusOK, launch.StatusFailed:
	}

	m.launcher.Schedule(id)

	return nil
}

// LaunchState returns the launch flow state.
func (m *Manager) LaunchState() api.LaunchState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.launcher.State()
}

// LookupEntries returns the lookup table.
func (m *Manager) LookupEntries() (api.Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.lookups.Load()
	if err != nil {
		return api.Lookup{}, err
	}

	entries := []api.LookupEntry{}

	for _, e := range table.Entries() {
		addr, err := m.layout.ConfigSectorOffset(e.Slot)
		if err != nil {
			addr = 0
		}

		entries = append(entries, api.LookupEntry{UUID: e.ID, Slot: e.Slot, ConfigAddress: addr})
	}

	return api.Lookup{
		Entries:  entries,
		Capacity: table.Capacity(),
		Bytes:    table.Len(),
	}, nil
}

// PrintLookup writes a human readable dump of the lookup table.
func (m *Manager) PrintLookup(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.lookups.Load()
	if err != nil {
		return err
	}

	return table.Print(w)
}

// EraseLookup forgets every slot assignment.
func (m *Manager) EraseLookup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slog.Warn("Erasing lookup table")

	return m.lookups.Erase()
}
