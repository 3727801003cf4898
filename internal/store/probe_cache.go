package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	probeBucket      = "probes"
	probeValueBytes  = 9 // 1 verdict byte + 8 expiry bytes
	verdictSupported = byte(1)
)

// ProbeCache remembers fingerprint-probe verdicts per site so unsupported
// sites are not re-probed on every run. Entries expire after a TTL.
type ProbeCache interface {
	Close() error
	// Verdict returns (supported, known). Expired entries read as unknown.
	Verdict(siteURL string) (bool, bool, error)
	SetVerdict(siteURL string, supported bool) error
}

// Options controls retention characteristics of the probe cache.
type Options struct {
	ProbeTTL        time.Duration
	CleanupInterval time.Duration
}

const (
	defaultProbeTTL        = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewProbeCache creates the probe cache backend. An empty path disables
// caching (every run re-probes).
func NewProbeCache(path string, opts Options) (ProbeCache, error) {
	if strings.TrimSpace(path) == "" {
		return noopProbeCache{}, nil
	}
	return openBoltCache(path, normalizeOptions(opts))
}

func normalizeOptions(opts Options) Options {
	if opts.ProbeTTL <= 0 {
		opts.ProbeTTL = defaultProbeTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopProbeCache struct{}

func (noopProbeCache) Close() error                         { return nil }
func (noopProbeCache) Verdict(string) (bool, bool, error)   { return false, false, nil }
func (noopProbeCache) SetVerdict(string, bool) error        { return nil }

// boltProbeCache implements ProbeCache backed by BoltDB.
type boltProbeCache struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	probeTTL        time.Duration
	cleanupInterval time.Duration
}

func openBoltCache(path string, opts Options) (ProbeCache, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(probeBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	cache := &boltProbeCache{
		db:              db,
		probeTTL:        opts.ProbeTTL,
		cleanupInterval: opts.CleanupInterval,
	}
	cache.lastCleanup.Store(time.Now().Unix())
	return cache, nil
}

// Close closes the BoltDB cache.
func (b *boltProbeCache) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Verdict looks up the cached probe outcome for a site URL.
func (b *boltProbeCache) Verdict(siteURL string) (bool, bool, error) {
	if b == nil || b.db == nil {
		return false, false, nil
	}

	if err := b.maybeCleanupExpired(time.Now()); err != nil {
		return false, false, err
	}

	var supported, known bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(probeBucket))
		if bucket == nil {
			return fmt.Errorf("probe bucket missing")
		}

		key := []byte(siteURL)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		verdict, expiry, ok := decodeVerdict(value)
		if !ok || !expiry.After(time.Now()) {
			return bucket.Delete(key)
		}

		supported = verdict == verdictSupported
		known = true
		return nil
	})
	return supported, known, err
}

// SetVerdict records the probe outcome for a site URL.
func (b *boltProbeCache) SetVerdict(siteURL string, supported bool) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(probeBucket))
		if bucket == nil {
			return fmt.Errorf("probe bucket missing")
		}
		buf := make([]byte, probeValueBytes)
		if supported {
			buf[0] = verdictSupported
		}
		binary.BigEndian.PutUint64(buf[1:], uint64(now.Add(b.probeTTL).Unix()))
		return bucket.Put([]byte(siteURL), buf)
	})
}

// maybeCleanupExpired removes expired verdicts on a fixed cadence to avoid
// unbounded growth.
func (b *boltProbeCache) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(probeBucket))
		if bucket == nil {
			return fmt.Errorf("probe bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			_, expiry, ok := decodeVerdict(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

// decodeVerdict decodes the verdict byte and expiry time from a stored value.
func decodeVerdict(value []byte) (byte, time.Time, bool) {
	if len(value) != probeValueBytes {
		return 0, time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[1:]))
	if unix <= 0 {
		return 0, time.Time{}, false
	}
	return value[0], time.Unix(unix, 0), true
}
