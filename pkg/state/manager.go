package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"fbcleanup/pkg/logger"
)

// Manager owns the progress file and its in-memory mirror. One Manager per
// file per process; there is no file locking.
type Manager struct {
	mu     sync.Mutex
	path   string
	state  *ProgressState
	now    func() time.Time
	logger logger.Logger
}

// NewManager creates a manager for path, creating its directory
func NewManager(path string) (*Manager, error) {
	if path == "" {
		dir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		path = filepath.Join(dir, "progress.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	m := &Manager{
		path:   path,
		now:    time.Now,
		logger: logger.GetLogger(),
	}
	m.logger.InfoWithFields("state manager initialized", map[string]interface{}{"path": path})
	return m, nil
}

// WithClock replaces the time source used for timestamps
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithLogger sets the logger
func (m *Manager) WithLogger(l logger.Logger) *Manager {
	m.logger = logger.OrGlobal(l)
	return m
}

// Path returns the progress file location
func (m *Manager) Path() string { return m.path }

func (m *Manager) backupPath() string { return m.path + ".bak" }
func (m *Manager) tempPath() string   { return m.path + ".tmp" }

// GetState returns the cached state, loading or defaulting it on first use.
// Repeated calls return the same instance until the next load or save.
func (m *Manager) GetState() *ProgressState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getState()
}

func (m *Manager) getState() *ProgressState {
	if m.state == nil {
		if s := m.load(); s != nil {
			m.state = s
		} else {
			m.state = DefaultState(m.now())
		}
	}
	return m.state
}

// LoadState reads the file. It returns nil when the file is missing, empty,
// not valid JSON, not an object, or has none of RecognizedKeys.
func (m *Manager) LoadState() *ProgressState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.load()
	if s != nil {
		m.state = s
	}
	return s
}

func (m *Manager) load() *ProgressState {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Debug("progress file does not exist, using default state")
		} else {
			m.logger.ErrorWithFields("failed to read progress file", map[string]interface{}{
				"path":  m.path,
				"error": err.Error(),
			})
		}
		return nil
	}

	s, err := decode(data)
	if err != nil {
		m.logger.WarnWithFields("progress file is corrupt, starting fresh", map[string]interface{}{
			"path":  m.path,
			"error": err.Error(),
		})
		return nil
	}

	m.logger.InfoWithFields("state loaded", map[string]interface{}{
		"path":          m.path,
		"total_deleted": s.TotalDeleted,
	})
	return s
}

var errUnrecognized = errors.New("no recognized progress fields")

func decode(data []byte) (*ProgressState, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty file")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("not a JSON object")
	}

	recognized := false
	for _, k := range RecognizedKeys {
		if _, ok := fields[k]; ok {
			recognized = true
			break
		}
	}
	if !recognized {
		return nil, errUnrecognized
	}

	var s ProgressState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveState stamps last_updated and writes s atomically: the previous file
// is copied to .bak, the new content goes to .tmp and is renamed over the
// target. A nil s saves the cached state. Failures are logged; the error is
// returned for callers that care, and the cache is left untouched.
func (m *Manager) SaveState(s *ProgressState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(s)
}

func (m *Manager) save(s *ProgressState) error {
	if s == nil {
		s = m.getState()
	}
	s.LastUpdated = Timestamp{m.now()}

	if err := m.write(s); err != nil {
		m.logger.ErrorWithFields("failed to save state", map[string]interface{}{
			"path":  m.path,
			"error": err.Error(),
		})
		return err
	}

	m.state = s
	m.logger.DebugWithFields("state saved", map[string]interface{}{
		"path":          m.path,
		"total_deleted": s.TotalDeleted,
	})
	return nil
}

func (m *Manager) write(s *ProgressState) error {
	if err := m.backup(); err != nil {
		m.logger.WarnWithFields("failed to back up progress file", map[string]interface{}{"error": err.Error()})
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tempPath := m.tempPath()
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// backup copies the current file to .bak; last write wins
func (m *Manager) backup() error {
	src, err := os.Open(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(m.backupPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy state to backup: %w", err)
	}
	return nil
}

// UpdateState applies fn to the cached state and saves it. Pass every
// field that must change together in a single call.
func (m *Manager) UpdateState(fn func(s *ProgressState)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getState()
	fn(s)
	return m.save(s)
}

// ClearState deletes the progress file and drops the cache
func (m *Manager) ClearState() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = nil
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.ErrorWithFields("failed to clear state", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to clear state: %w", err)
	}
	m.logger.Info("progress state cleared")
	return nil
}

// Exists checks if a progress file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// getDataDirectory returns the per-user data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "fbcleanup")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "fbcleanup")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "fbcleanup")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "fbcleanup")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
