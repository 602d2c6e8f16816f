// Package settings persists user settings as string key/value pairs in a
// bbolt file.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/valpere/sheetmentor/internal/apperr"
)

// Well-known keys.
const (
	KeyGeminiAPIKey      = "geminiApiKey"
	KeySpreadsheetID     = "spreadsheetId"
	KeyExtensionSettings = "extension_settings"
	KeyUserPreferences   = "userPreferences"
	KeySelectedTab       = "selectedTab"
)

var bucketSettings = []byte("settings")

type ExtensionSettings struct {
	AutoGenerate    bool   `json:"autoGenerate"`
	ReportFormat    string `json:"reportFormat" validate:"omitempty,oneof=markdown text"`
	MaxReportLength int    `json:"maxReportLength" validate:"gte=0"`
}

type UserPreferences struct {
	Theme    string `json:"theme" validate:"omitempty,oneof=light dark auto"`
	Language string `json:"language" validate:"omitempty,oneof=ko en auto"`
}

func DefaultExtensionSettings() ExtensionSettings {
	return ExtensionSettings{
		AutoGenerate:    true,
		ReportFormat:    "markdown",
		MaxReportLength: 5000,
	}
}

func DefaultUserPreferences() UserPreferences {
	return UserPreferences{Theme: "auto", Language: "ko"}
}

// Store is safe for concurrent use. A Store opened with an empty path keeps
// everything in memory.
type Store struct {
	db  *bolt.DB
	mu  sync.RWMutex
	mem map[string]string
}

func Open(path string) (*Store, error) {
	if path == "" {
		return &Store{mem: make(map[string]string)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.Wrap(err, apperr.KindStorage, "failed to create settings directory")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindStorage, "failed to open settings db")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSettings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, apperr.Wrap(err, apperr.KindStorage, "failed to create settings bucket")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(key string) (string, bool, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		v, ok := s.mem[key]
		return v, ok, nil
	}

	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSettings).Get([]byte(key)); v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, apperr.Wrap(err, apperr.KindStorage, "failed to read setting")
	}
	return value, found, nil
}

func (s *Store) Set(key, value string) error {
	if key == "" {
		return apperr.Validation("setting key is required")
	}
	if s.db == nil {
		s.mu.Lock()
		s.mem[key] = value
		s.mu.Unlock()
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindStorage, "failed to save setting")
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if s.db == nil {
		s.mu.Lock()
		delete(s.mem, key)
		s.mu.Unlock()
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Delete([]byte(key))
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindStorage, "failed to delete setting")
	}
	return nil
}

// Keys returns every stored key in sorted order.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	if s.db == nil {
		s.mu.RLock()
		for k := range s.mem {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
		sort.Strings(keys)
		return keys, nil
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindStorage, "failed to list settings")
	}
	return keys, nil
}

// APIKey returns the stored Gemini API key, or "" when unset.
func (s *Store) APIKey() (string, error) {
	v, _, err := s.Get(KeyGeminiAPIKey)
	return v, err
}

func (s *Store) SetAPIKey(key string) error {
	return s.Set(KeyGeminiAPIKey, key)
}

func (s *Store) SpreadsheetID() (string, error) {
	v, _, err := s.Get(KeySpreadsheetID)
	return v, err
}

func (s *Store) SetSpreadsheetID(id string) error {
	return s.Set(KeySpreadsheetID, id)
}

// ExtensionSettings returns the stored settings or the defaults when unset.
func (s *Store) ExtensionSettings() (ExtensionSettings, error) {
	out := DefaultExtensionSettings()
	err := s.getJSON(KeyExtensionSettings, &out)
	return out, err
}

func (s *Store) SetExtensionSettings(v ExtensionSettings) error {
	return s.setJSON(KeyExtensionSettings, v)
}

// UserPreferences returns the stored preferences or the defaults when unset.
func (s *Store) UserPreferences() (UserPreferences, error) {
	out := DefaultUserPreferences()
	err := s.getJSON(KeyUserPreferences, &out)
	return out, err
}

func (s *Store) SetUserPreferences(v UserPreferences) error {
	return s.setJSON(KeyUserPreferences, v)
}

func (s *Store) getJSON(key string, dest any) error {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return apperr.Wrap(err, apperr.KindStorage, fmt.Sprintf("invalid value for %s", key))
	}
	return nil
}

func (s *Store) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(key, string(data))
}
