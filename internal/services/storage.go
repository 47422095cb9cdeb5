package services

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"factlens/internal/models"

	bolt "go.etcd.io/bbolt"
)

const (
	historyBucket  = "history"
	cacheBucket    = "cache"
	settingsBucket = "settings"
	errorsBucket   = "errors"
	historyKey     = "scanHistory"
	settingsKey    = "settings"
	errorLogSep    = "\n---\n"
)

type storage struct {
	db     *bolt.DB
	config *StorageConfig
	now    func() time.Time
}

func NewStorage(config *StorageConfig) (Storage, error) {
	return newStorage(config)
}

func newStorage(config *StorageConfig) (*storage, error) {
	dbDir := filepath.Dir(config.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(config.DatabasePath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{historyBucket, cacheBucket, settingsBucket, errorsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &storage{
		db:     db,
		config: config,
		now:    time.Now,
	}, nil
}

func (s *storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AppendHistory prepends entry and drops the oldest entries beyond the
// configured limit.
func (s *storage) AppendHistory(entry models.HistoryEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucket))

		var history []models.HistoryEntry
		if data := bucket.Get([]byte(historyKey)); data != nil {
			if err := json.Unmarshal(data, &history); err != nil {
				return fmt.Errorf("failed to decode history: %w", err)
			}
		}

		history = append([]models.HistoryEntry{entry}, history...)
		if limit := s.config.HistoryLimit; limit > 0 && len(history) > limit {
			history = history[:limit]
		}

		data, err := json.Marshal(history)
		if err != nil {
			return fmt.Errorf("failed to marshal history: %w", err)
		}
		return bucket.Put([]byte(historyKey), data)
	})
}

func (s *storage) LoadHistory() ([]models.HistoryEntry, error) {
	history := []models.HistoryEntry{}

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(historyBucket)).Get([]byte(historyKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &history)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return history, nil
}

func (s *storage) ClearHistory() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(historyBucket)).Delete([]byte(historyKey))
	})
}

func (s *storage) PutCache(url string, results models.AnalysisResult) error {
	if url == "" {
		return fmt.Errorf("cache key must not be empty")
	}

	data, err := json.Marshal(models.CacheEntry{
		Timestamp: s.now().UnixMilli(),
		Results:   results,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(cacheBucket)).Put([]byte(url), data)
	})
}

// GetCache returns the cached result for url while it is younger than the
// TTL. Expired entries are removed.
func (s *storage) GetCache(url string) (*models.AnalysisResult, bool, error) {
	if url == "" {
		return nil, false, nil
	}

	var entry *models.CacheEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		entry, err = readCacheEntry(tx, url)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if entry == nil {
		return nil, false, nil
	}

	now := s.now()
	if s.cacheFresh(entry, now) {
		return &entry.Results, true, nil
	}

	// A PutCache may have replaced the entry since it was read, so the
	// eviction decision is made again inside the write transaction.
	var current *models.CacheEntry
	err = s.db.Update(func(tx *bolt.Tx) error {
		var err error
		current, err = readCacheEntry(tx, url)
		if err != nil || current == nil {
			return err
		}
		if s.cacheFresh(current, now) {
			return nil
		}
		current = nil
		return tx.Bucket([]byte(cacheBucket)).Delete([]byte(url))
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to evict expired cache entry: %w", err)
	}
	if current != nil {
		return &current.Results, true, nil
	}
	return nil, false, nil
}

func (s *storage) cacheFresh(entry *models.CacheEntry, now time.Time) bool {
	return now.Sub(time.UnixMilli(entry.Timestamp)) < s.config.CacheTTL()
}

func readCacheEntry(tx *bolt.Tx, url string) (*models.CacheEntry, error) {
	data := tx.Bucket([]byte(cacheBucket)).Get([]byte(url))
	if data == nil {
		return nil, nil
	}
	entry := &models.CacheEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *storage) SaveSettings(settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(settingsBucket)).Put([]byte(settingsKey), data)
	})
}

func (s *storage) LoadSettings() (*models.Settings, bool, error) {
	var settings *models.Settings
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(settingsBucket)).Get([]byte(settingsKey))
		if data == nil {
			return nil
		}
		settings = &models.Settings{}
		return json.Unmarshal(data, settings)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, settings != nil, nil
}

func (s *storage) AppendErrorLog(record models.ErrorRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal error record: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(errorsBucket))
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, data)
	})
}

// ExportErrorLog returns every record in insertion order, each followed by
// the record delimiter.
func (s *storage) ExportErrorLog() (string, error) {
	var out strings.Builder
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(errorsBucket)).ForEach(func(_, v []byte) error {
			out.Write(v)
			out.WriteString(errorLogSep)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to export error log: %w", err)
	}
	return out.String(), nil
}

func (s *storage) ClearErrorLog() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(errorsBucket)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(errorsBucket))
		return err
	})
}
