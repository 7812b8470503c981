// Package session persists the operator-facing screen settings as an
// explicit JSON file boundary. Callers pass settings in and out; nothing
// here leaks into ambient state.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tableside/kds/pkg/logging"
)

// Settings is the per-screen state that survives restarts: the selected
// scope, presentation preferences and SLA thresholds.
type Settings struct {
	Kitchen      string        `json:"kitchen,omitempty"`
	Station      string        `json:"station,omitempty"`
	ViewMode     string        `json:"view_mode,omitempty"`
	SortMode     string        `json:"sort_mode,omitempty"`
	SoundEnabled bool          `json:"sound_enabled"`
	SLAWarning   time.Duration `json:"sla_warning,omitempty"`
	SLACritical  time.Duration `json:"sla_critical,omitempty"`
	PollInterval time.Duration `json:"poll_interval,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at,omitempty"`
}

// DefaultSettings returns the state a fresh screen starts with.
func DefaultSettings() Settings {
	return Settings{
		ViewMode:     "board",
		SortMode:     "time",
		SoundEnabled: true,
		SLAWarning:   5 * time.Minute,
		SLACritical:  10 * time.Minute,
	}
}

// Store reads and writes the settings file. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	filePath string
	current  Settings
	logger   logging.Logger
}

func NewStore(filePath string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	s := &Store{filePath: filePath, current: DefaultSettings(), logger: logger}
	if err := s.loadFromFile(); err != nil {
		return nil, fmt.Errorf("init settings store: %w", err)
	}
	return s, nil
}

// Load returns the current settings.
func (s *Store) Load() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Save replaces the settings and writes them to disk.
func (s *Store) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.UpdatedAt = time.Now().UTC()
	if err := s.saveToFile(settings); err != nil {
		return err
	}
	s.current = settings
	return nil
}

// Update applies fn to a copy of the current settings and persists the
// result.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	fn(&next)
	next.UpdatedAt = time.Now().UTC()
	if err := s.saveToFile(next); err != nil {
		return Settings{}, err
	}
	s.current = next
	return next, nil
}

func (s *Store) loadFromFile() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read settings file: %w", err)
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		// A corrupt settings file must not keep the board from starting;
		// the next save rewrites it.
		s.logger.Errorf("settings file %s unreadable, starting with defaults: %v", s.filePath, err)
		return nil
	}

	s.current = loaded
	return nil
}

func (s *Store) saveToFile(settings Settings) error {
	if dir := filepath.Dir(s.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize settings: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}
