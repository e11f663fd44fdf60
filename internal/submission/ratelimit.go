package submission

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/logger"
)

const (
	// DefaultMaxSubmissions is the number of submissions allowed per window.
	DefaultMaxSubmissions = 10
	// DefaultWindow is the trailing window the limit applies to.
	DefaultWindow = time.Hour
	// StorageKey names the timestamp list inside the persisted document.
	StorageKey = "aiMarketplaceRateLimit"
)

// Storage persists the limiter state between runs.
type Storage interface {
	Load() ([]byte, error)
	Store(data []byte) error
}

// RateLimiter caps submissions from this client to max per trailing window.
//
// It is advisory only: the state is local to one client and gives no
// protection against distributed abuse.
type RateLimiter struct {
	mu         sync.Mutex
	storage    Storage
	log        logger.Logger
	max        int
	window     time.Duration
	timestamps []int64 // unix milliseconds, oldest first
}

// LoadRateLimiter restores a limiter from storage. Missing or corrupt state
// yields an empty limiter and entries older than the window are dropped.
// A nil storage keeps the state in memory only.
func LoadRateLimiter(storage Storage, max int, window time.Duration, now time.Time, log logger.Logger) *RateLimiter {
	if max <= 0 {
		max = DefaultMaxSubmissions
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = logger.NewNop()
	}
	rl := &RateLimiter{storage: storage, log: log, max: max, window: window}

	if storage == nil {
		return rl
	}
	data, err := storage.Load()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Debug("rate limit state unreadable, starting empty", logger.Error(err))
		}
		return rl
	}
	var stamps []int64
	if len(data) > 0 {
		if err := json.Unmarshal(data, &stamps); err != nil {
			log.Debug("rate limit state corrupt, starting empty", logger.Error(err))
			return rl
		}
	}
	rl.timestamps = stamps
	rl.prune(now)
	return rl
}

// prune drops timestamps that left the window. Callers hold mu or own rl.
func (rl *RateLimiter) prune(now time.Time) {
	nowMs := now.UnixMilli()
	limit := rl.window.Milliseconds()
	kept := rl.timestamps[:0]
	for _, ts := range rl.timestamps {
		if nowMs-ts < limit {
			kept = append(kept, ts)
		}
	}
	rl.timestamps = kept
}

// Allow reports whether one more submission fits in the window at now.
func (rl *RateLimiter) Allow(now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.prune(now)
	return len(rl.timestamps) < rl.max
}

// Remaining is the number of submissions still allowed at now.
func (rl *RateLimiter) Remaining(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.prune(now)
	if n := rl.max - len(rl.timestamps); n > 0 {
		return n
	}
	return 0
}

// Record counts a submission made at now.
func (rl *RateLimiter) Record(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.timestamps = append(rl.timestamps, now.UnixMilli())
}

// Save writes the state back. Failures are logged and otherwise ignored.
func (rl *RateLimiter) Save() {
	if rl.storage == nil {
		return
	}
	rl.mu.Lock()
	stamps := make([]int64, len(rl.timestamps))
	copy(stamps, rl.timestamps)
	rl.mu.Unlock()

	data, err := json.Marshal(stamps)
	if err != nil {
		rl.log.Debug("rate limit state not encoded", logger.Error(err))
		return
	}
	if err := rl.storage.Store(data); err != nil {
		rl.log.Debug("rate limit state not saved", logger.Error(err))
	}
}

// FileStorage keeps the limiter state in a small JSON document on disk,
// under StorageKey. Other keys of the document are preserved.
type FileStorage struct {
	Path string
}

// DefaultStoragePath is aimarket/ratelimit.json in the user config directory.
func DefaultStoragePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "aimarket", "ratelimit.json"), nil
}

func (f FileStorage) document() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Load returns the raw value stored under StorageKey.
func (f FileStorage) Load() ([]byte, error) {
	doc, err := f.document()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[StorageKey]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return raw, nil
}

// Store replaces the value under StorageKey, writing atomically.
func (f FileStorage) Store(data []byte) error {
	doc, err := f.document()
	if err != nil {
		// unreadable or corrupt documents are replaced
		doc = make(map[string]json.RawMessage)
	}
	doc[StorageKey] = json.RawMessage(data)

	out, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}
