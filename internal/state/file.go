package state

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

var currentStateVersion = 0

// LoadOrCreate parses the on-disk state file and returns a State struct.
// If no file exists, a new one is created with default settings.
func LoadOrCreate(path string, defaults map[string]string) (*State, error) {
	s := State{
		path: path,

		StateVersion: currentStateVersion,

		Settings: map[string]string{},
		Installs: map[string]Install{},
	}

	body, err := os.ReadFile(s.path) // #nosec G304
	if err == nil {
		err = Decode(body, nil, &s)
		if err != nil {
			return nil, err
		}

		return &s, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	for k, v := range defaults {
		s.Settings[k] = v
	}

	err = os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return nil, err
	}

	err = s.Save()
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// Get returns a setting, or the empty string when unset.
func (s *State) Get(key string) string {
	return s.Settings[key]
}

// GetOr returns a setting, or fallback when unset or empty.
func (s *State) GetOr(key string, fallback string) string {
	value := s.Settings[key]
	if value == "" {
		return fallback
	}

	return value
}

// Put sets a setting in memory. Call Save to persist it.
func (s *State) Put(key string, value string) {
	if s.Settings == nil {
		s.Settings = map[string]string{}
	}

	s.Settings[key] = value
}

// RecordInstall remembers an installed application.
func (s *State) RecordInstall(id string, install Install) {
	if s.Installs == nil {
		s.Installs = map[string]Install{}
	}

	s.Installs[id] = install
}

// ForgetInstall drops an installed application.
func (s *State) ForgetInstall(id string) {
	delete(s.Installs, id)
}

// Save writes out the current state into its on-disk storage.
func (s *State) Save() error {
	body, err := Encode(s)
	if err != nil {
		return err
	}

	// Replace the file atomically.
	tmp := s.path + ".tmp"

	err = os.WriteFile(tmp, body, 0o600)
	if err != nil {
		return err
	}

	err = os.Rename(tmp, s.path)
	if err != nil {
		return err
	}

	slog.Debug("Settings saved", "path", s.path)

	return nil
}
