// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/soomctl/pkg/actions"
)

// Format is a profile file encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// SettingsFile is the settings file name within the config directory
const SettingsFile = "settings.json"

// ErrNotFound is returned when no profile matches
var ErrNotFound = errors.New("profile not found")

// Store keeps profiles under <dir>/profiles and settings in <dir>/settings.json
type Store struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the config directory
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) profilesDir() string {
	return filepath.Join(s.dir, "profiles")
}

func (s *Store) path(id string, format Format) string {
	return filepath.Join(s.profilesDir(), id+"."+string(format))
}

// decodeFile reads a profile in the format given by its extension
func decodeFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Profile
	switch Format(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case FormatCBOR:
		_, dec := actions.CBORModes()
		err = dec.Unmarshal(data, &p)
	default:
		err = json.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

// List returns all readable profiles sorted by name. Unreadable files are
// logged and skipped.
func (s *Store) List() ([]*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.profilesDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []*Profile
	for _, e := range entries {
		ext := strings.TrimPrefix(filepath.Ext(e.Name()), ".")
		if e.IsDir() || (Format(ext) != FormatJSON && Format(ext) != FormatCBOR) {
			continue
		}
		p, err := decodeFile(filepath.Join(s.profilesDir(), e.Name()))
		if err != nil {
			slog.Warn("skipping unreadable profile", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get loads a profile by id
func (s *Store) Get(id string) (*Profile, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range []Format{FormatJSON, FormatCBOR} {
		p, err := decodeFile(s.path(id, f))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return p, err
	}
	return nil, ErrNotFound
}

// Find loads a profile by id, falling back to a case-insensitive name match
func (s *Store) Find(idOrName string) (*Profile, error) {
	if p, err := s.Get(idOrName); err == nil {
		return p, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	all, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if strings.EqualFold(p.Name, idOrName) {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

// Save writes p in format, replacing any copy in the other format, and
// stamps UpdatedAt
func (s *Store) Save(p *Profile, format Format) error {
	if p.ID == "" {
		return errors.New("profile has no id")
	}
	if strings.ContainsAny(p.ID, `/\`) {
		return fmt.Errorf("invalid profile id %q", p.ID)
	}
	if format == "" {
		format = FormatJSON
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = s.now().UnixMilli()
	if p.CreatedAt == 0 {
		p.CreatedAt = p.UpdatedAt
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(p, "", "  ")
	case FormatCBOR:
		enc, _ := actions.CBORModes()
		data, err = enc.Marshal(p)
	default:
		return fmt.Errorf("unknown profile format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	if err := os.MkdirAll(s.profilesDir(), 0o755); err != nil {
		return err
	}
	if err := writeFile(s.path(p.ID, format), data); err != nil {
		return err
	}

	for _, other := range []Format{FormatJSON, FormatCBOR} {
		if other != format {
			os.Remove(s.path(p.ID, other))
		}
	}
	return nil
}

// Create makes and saves a new empty profile
func (s *Store) Create(name string) (*Profile, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("profile name is required")
	}
	p := New(name)
	if err := s.Save(p, FormatJSON); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a profile
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for _, f := range []Format{FormatJSON, FormatCBOR} {
		err := os.Remove(s.path(id, f))
		if err == nil {
			removed = true
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

// LoadSettings reads settings.json, returning defaults if it does not exist
func (s *Store) LoadSettings() (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(filepath.Join(s.dir, SettingsFile))
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, err
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("%s: %w", SettingsFile, err)
	}
	settings.normalize()
	return settings, nil
}

// SaveSettings writes settings.json
func (s *Store) SaveSettings(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, SettingsFile), data)
}

// writeFile replaces path atomically
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
