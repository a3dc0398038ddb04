// Package cache persists raw verifier responses keyed by a deterministic request
// fingerprint so pipeline runs can be replayed without re-querying any backend.
package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	_ "modernc.org/sqlite"
)

// DefaultFetchTimeout bounds a shared fetch once it no longer follows its first caller.
const DefaultFetchTimeout = 2 * time.Minute

// fieldSeparator joins fingerprint components; it cannot occur in normalized input.
const fieldSeparator = "\x1f"

// Key identifies one verifier request.
type Key struct {
	Verifier      string
	Word          string
	Language      string
	PromptVersion string
}

// NormalizeWord is the word normalization used inside fingerprints. Case is kept:
// words differing only in case are distinct candidates.
func NormalizeWord(word string) string {
	return strings.TrimSpace(norm.NFC.String(word))
}

// Fingerprint returns the hex BLAKE2b-256 digest of the key.
func (k Key) Fingerprint() string {
	payload := strings.Join([]string{
		k.Verifier,
		NormalizeWord(k.Word),
		strings.ToLower(strings.TrimSpace(k.Language)),
		k.PromptVersion,
	}, fieldSeparator)
	sum := blake2b.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// RawResponse is a verifier's unparsed output as stored in the cache.
type RawResponse struct {
	Fingerprint   string
	Body          string
	PromptVersion string
	CreatedAt     time.Time
	FromCache     bool
}

// FetchFunc produces a raw response on a cache miss.
type FetchFunc func(ctx context.Context) (string, error)

// Stats summarizes the cache contents.
type Stats struct {
	Entries        int
	ByVerifier     map[string]int
	PromptVersions map[string]int
}

// Cache is a SQLite-backed response cache. Safe for concurrent use.
type Cache struct {
	db           *sql.DB
	group        singleflight.Group
	logger       *zap.Logger
	now          func() time.Time
	fetchTimeout time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS response_cache (
	fingerprint    TEXT PRIMARY KEY,
	verifier       TEXT NOT NULL,
	word           TEXT NOT NULL,
	language       TEXT NOT NULL,
	prompt_version TEXT NOT NULL,
	body           TEXT NOT NULL,
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_response_cache_prompt_version ON response_cache(prompt_version);
CREATE INDEX IF NOT EXISTS idx_response_cache_verifier ON response_cache(verifier);
`

// Open opens (creating if needed) the cache file at path.
func Open(path string, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// A single connection serializes writers; SQLite allows only one at a time anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure cache database: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Cache{
		db:           db,
		logger:       logger.Named("cache"),
		now:          time.Now,
		fetchTimeout: DefaultFetchTimeout,
	}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached response for a fingerprint, or nil if none exists.
func (c *Cache) Get(ctx context.Context, fingerprint string) (*RawResponse, error) {
	var (
		resp    RawResponse
		created int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT fingerprint, body, prompt_version, created_at FROM response_cache WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&resp.Fingerprint, &resp.Body, &resp.PromptVersion, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	resp.CreatedAt = time.Unix(0, created).UTC()
	resp.FromCache = true
	return &resp, nil
}

// GetOrFetch returns the cached response for key, or invokes fetch and stores its
// result. A failed fetch stores nothing. Concurrent misses on one fingerprint
// share a single fetch; it runs detached from any one caller's cancellation,
// and each caller stops waiting when its own ctx is done.
func (c *Cache) GetOrFetch(ctx context.Context, key Key, fetch FetchFunc) (*RawResponse, error) {
	fp := key.Fingerprint()

	ch := c.group.DoChan(fp, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		cached, err := c.Get(fctx, fp)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}

		body, err := fetch(fctx)
		if err != nil {
			return nil, err
		}

		resp := &RawResponse{
			Fingerprint:   fp,
			Body:          body,
			PromptVersion: key.PromptVersion,
			CreatedAt:     time.Unix(0, c.now().UnixNano()).UTC(),
		}
		if err := c.put(fctx, key, resp); err != nil {
			return nil, err
		}
		c.logger.Debug("cached response",
			zap.String("fingerprint", fp),
			zap.String("verifier", key.Verifier),
			zap.String("word", key.Word))
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Each caller gets its own copy of the shared result
		out := *res.Val.(*RawResponse)
		return &out, nil
	}
}

// put upserts a response; the last writer wins.
func (c *Cache) put(ctx context.Context, key Key, resp *RawResponse) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO response_cache (fingerprint, verifier, word, language, prompt_version, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO UPDATE SET
			body = excluded.body,
			created_at = excluded.created_at`,
		resp.Fingerprint, key.Verifier, NormalizeWord(key.Word), key.Language,
		key.PromptVersion, resp.Body, resp.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Invalidate removes one entry. Reports whether an entry existed.
func (c *Cache) Invalidate(ctx context.Context, fingerprint string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM response_cache WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return false, fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	return n > 0, nil
}

// InvalidatePromptVersion removes every entry produced with a prompt version.
func (c *Cache) InvalidatePromptVersion(ctx context.Context, version string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM response_cache WHERE prompt_version = ?`, version)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate prompt version %s: %w", version, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate prompt version %s: %w", version, err)
	}
	c.logger.Info("invalidated prompt version", zap.String("prompt_version", version), zap.Int64("entries", n))
	return n, nil
}

// Stats counts entries per verifier and per prompt version.
func (c *Cache) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByVerifier:     make(map[string]int),
		PromptVersions: make(map[string]int),
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT verifier, prompt_version, COUNT(*) FROM response_cache GROUP BY verifier, prompt_version`)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			verifier, version string
			n                 int
		)
		if err := rows.Scan(&verifier, &version, &n); err != nil {
			return nil, fmt.Errorf("failed to scan cache stats: %w", err)
		}
		stats.Entries += n
		stats.ByVerifier[verifier] += n
		stats.PromptVersions[version] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return stats, nil
}
