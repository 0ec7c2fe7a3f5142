// Package launch flashes an installed application and reboots into it.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/sidecartridge/booster/boosterd/api"
	"github.com/sidecartridge/booster/boosterd/internal/applications"
	"github.com/sidecartridge/booster/boosterd/internal/flash"
	"github.com/sidecartridge/booster/boosterd/internal/reset"
	"github.com/sidecartridge/booster/boosterd/internal/state"
	"github.com/sidecartridge/booster/boosterd/internal/storage"
	"github.com/sidecartridge/booster/boosterd/internal/uf2"
	"github.com/sidecartridge/booster/boosterd/internal/util"
)

var (
	// ErrStorageNotReady is returned when the removable storage isn't available.
	ErrStorageNotReady = errors.New("storage not ready")

	// ErrNotUUID is returned when the scheduled identifier isn't a valid UUID4.
	ErrNotUUID = errors.New("not a valid UUID4")

	// ErrCannotOpenBinary is returned when the application binary can't be opened.
	ErrCannotOpenBinary = errors.New("cannot open application binary")

	// ErrCannotSaveSettings is returned when the boot feature can't be saved.
	ErrCannotSaveSettings = errors.New("cannot save settings")
)

// Status is the state of the launch flow.
type Status int

// Launch states.
const (
	StatusIdle Status = iota
	StatusScheduled
	StatusInProgress
	StatusOK
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusScheduled:
		return "scheduled"
	case StatusInProgress:
		return "in_progress"
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	}

	return "unknown"
}

// Settings is the settings store receiving the boot feature.
type Settings interface {
	Put(key string, value string)
	Save() error
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithDelay sets the time between a launch starting and the application being flashed.
func WithDelay(delay time.Duration) Option {
	return func(l *Launcher) {
		l.delay = delay
	}
}

// WithStorage sets the storage prober.
func WithStorage(prober storage.Prober) Option {
	return func(l *Launcher) {
		l.storage = prober
	}
}

// WithPageSize sets the page size used when flashing the application.
func WithPageSize(size uint32) Option {
	return func(l *Launcher) {
		l.pageSize = size
	}
}

// Launcher is the launch flow. A launch is first scheduled, then executed once its
// delay elapsed, leaving room for a countdown.
type Launcher struct {
	fs       afero.Fs
	folder   string
	dev      flash.Device
	layout   flash.Layout
	settings Settings
	resetter reset.Resetter
	storage  storage.Prober
	delay    time.Duration
	pageSize uint32

	status   Status
	id       string
	err      error
	launchAt time.Time
	result   uf2.Result
}

// New returns an idle Launcher flashing binaries from folder into the storage region.
func New(fs afero.Fs, folder string, dev flash.Device, layout flash.Layout, settings Settings, resetter reset.Resetter, opts ...Option) *Launcher {
	l := &Launcher{
		fs:       fs,
		folder:   folder,
		dev:      dev,
		layout:   layout,
		settings: settings,
		resetter: resetter,
		storage:  func() storage.Info { return storage.Info{Ready: true} },
		delay:    5 * time.Second,
		pageSize: flash.DefaultBlockSize,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Schedule records the application to launch.
func (l *Launcher) Schedule(id string) {
	l.id = id
	l.err = nil
	l.result = uf2.Result{}
	l.status = StatusScheduled
}

// Begin starts the countdown of a scheduled launch.
func (l *Launcher) Begin(now time.Time) {
	if l.status != StatusScheduled {
		return
	}

	l.launchAt = now.Add(l.delay)
	l.status = StatusInProgress
}

// Due returns whether an in progress launch should be executed.
func (l *Launcher) Due(now time.Time) bool {
	return l.status == StatusInProgress && !now.Before(l.launchAt)
}

// Execute flashes the scheduled application, selects it for the next boot and resets
// the device. The development application is never flashed.
func (l *Launcher) Execute(ctx context.Context) error {
	err := l.execute(ctx)
	if err != nil {
		l.status = StatusFailed
		l.err = err

		slog.ErrorContext(ctx, "Failed to launch application", "uuid", l.id, "err", err)

		return err
	}

	l.status = StatusOK

	return nil
}

func (l *Launcher) execute(ctx context.Context) error {
	if !util.IsValidUUID4(l.id) {
		return ErrNotUUID
	}

	if !l.storage().Ready {
		return ErrStorageNotReady
	}

	if l.id != util.DevelopmentAppID {
		err := l.flash(ctx)
		if err != nil {
			return err
		}
	} else {
		slog.InfoContext(ctx, "Development application, skipping flash")
	}

	l.settings.Put(state.SettingBootFeature, l.id)

	err := l.settings.Save()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotSaveSettings, err)
	}

	return l.resetter.Reset(ctx)
}

func (l *Launcher) flash(ctx context.Context) error {
	path := filepath.Join(l.folder, applications.BinaryName(l.id))

	f, err := l.fs.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotOpenBinary, err)
	}

	defer f.Close()

	slog.InfoContext(ctx, "Flashing application", "uuid", l.id, "address", fmt.Sprintf("0x%08X", l.layout.StorageStart))

	lastReported := -1

	w := uf2.NewWriter(l.dev,
		uf2.WithLogger(slog.Default().With("uuid", l.id)),
		uf2.WithProgressCallback(func(p uf2.Progress) {
			step := int(p.Percentage) / 25
			if step != lastReported {
				lastReported = step
				slog.DebugContext(ctx, "Flashing progress", "percentage", int(p.Percentage))
			}
		}),
	)

	res, err := w.Write(f, l.layout.StorageStart, l.layout.StorageSize, l.pageSize)
	l.result = res

	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Application flashed", "uuid", l.id, "bytes", res.BytesWritten, "skipped", res.BlocksSkipped, "truncated", res.Truncated)

	return nil
}

// Status returns the current state.
func (l *Launcher) Status() Status {
	return l.status
}

// ID returns the scheduled application.
func (l *Launcher) ID() string {
	return l.id
}

// Err returns the error of the last launch.
func (l *Launcher) Err() error {
	return l.err
}

// Result returns the outcome of the last flash.
func (l *Launcher) Result() uf2.Result {
	return l.result
}

// State returns the public representation of the launch flow.
func (l *Launcher) State() api.LaunchState {
	s := api.LaunchState{
		Status:      l.status.String(),
		Application: l.id,
	}

	if l.err != nil {
		s.Error = l.err.Error()
	}

	return s
}
