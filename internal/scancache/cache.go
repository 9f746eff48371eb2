package scancache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"docsync/internal/extract"
	"docsync/internal/logging"
)

// schemaVersion is bumped whenever the cached row shape changes. A
// version mismatch empties the cache on open; cached scans are always
// reproducible from the doc tree.
const schemaVersion = 1

const metaKeySchemaVersion = "schema_version"

// Cache stores per-document extraction results keyed by content hash,
// so unchanged doc files are not rescanned on every run.
type Cache struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
}

// Entry pairs an extraction result with the content hash of the doc
// file it was produced from.
type Entry struct {
	ContentHash string
	Result      *extract.Result
}

// Stats summarizes the cache for health checks.
type Stats struct {
	Path      string `json:"path"`
	Entries   int    `json:"entries"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Open opens or creates the scan cache database at dbPath. The parent
// directory is created if needed.
func Open(dbPath string, logger *logging.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Set pragmas for performance and reliability
	pragmas := []string{
		"PRAGMA journal_mode=WAL",    // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous=NORMAL",  // Balance between safety and performance
		"PRAGMA busy_timeout=5000",   // Wait up to 5 seconds on lock
		"PRAGMA cache_size=-16000",   // 16MB cache
		"PRAGMA temp_store=MEMORY",   // Use memory for temp tables
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	c := &Cache{
		conn:   conn,
		logger: logger,
		dbPath: dbPath,
	}

	if err := c.initializeSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return c, nil
}

// Close closes the cache database connection.
func (c *Cache) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Path returns the cache database path.
func (c *Cache) Path() string {
	return c.dbPath
}

func (c *Cache) initializeSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS scanned_docs (
			doc_path     TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			scanned_at   INTEGER NOT NULL,
			result_json  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cache_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := c.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	stored := c.getMeta(metaKeySchemaVersion)
	if stored != "" && stored != strconv.Itoa(schemaVersion) {
		c.logger.Info("Cache schema changed, discarding cached scans", map[string]interface{}{
			"stored":  stored,
			"current": schemaVersion,
		})
		if _, err := c.conn.Exec(`DELETE FROM scanned_docs`); err != nil {
			return fmt.Errorf("failed to clear stale cache: %w", err)
		}
	}

	return c.setMeta(metaKeySchemaVersion, strconv.Itoa(schemaVersion))
}

func (c *Cache) getMeta(key string) string {
	var value string
	row := c.conn.QueryRow(`SELECT value FROM cache_meta WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		return ""
	}
	return value
}

func (c *Cache) setMeta(key, value string) error {
	_, err := c.conn.Exec(`INSERT OR REPLACE INTO cache_meta (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// Get returns the cached extraction result for docPath if one exists
// for exactly this content hash. A hash mismatch is a miss: the row is
// left in place and will be replaced when the rescan is stored.
func (c *Cache) Get(docPath, contentHash string) (*extract.Result, bool, error) {
	var storedHash, resultJSON string
	row := c.conn.QueryRow(`
		SELECT content_hash, result_json FROM scanned_docs WHERE doc_path = ?
	`, docPath)

	err := row.Scan(&storedHash, &resultJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if storedHash != contentHash {
		return nil, false, nil
	}

	var result extract.Result
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		// Corrupt row. Drop it and rescan rather than failing the run.
		c.logger.Warn("Discarding corrupt cache entry", map[string]interface{}{
			"doc_path": docPath,
			"error":    err.Error(),
		})
		if _, delErr := c.conn.Exec(`DELETE FROM scanned_docs WHERE doc_path = ?`, docPath); delErr != nil {
			return nil, false, fmt.Errorf("failed to delete corrupt cache entry: %w", delErr)
		}
		return nil, false, nil
	}

	return &result, true, nil
}

// Put stores one extraction result.
func (c *Cache) Put(contentHash string, result *extract.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	_, err = c.conn.Exec(`
		INSERT OR REPLACE INTO scanned_docs (doc_path, content_hash, scanned_at, result_json)
		VALUES (?, ?, ?, ?)
	`, result.DocPath, contentHash, time.Now().Unix(), string(resultJSON))
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// StoreAll stores a batch of extraction results in one transaction.
func (c *Cache) StoreAll(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	return c.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO scanned_docs (doc_path, content_hash, scanned_at, result_json)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		defer stmt.Close() //nolint:errcheck // Best effort cleanup

		now := time.Now().Unix()
		for _, e := range entries {
			resultJSON, err := json.Marshal(e.Result)
			if err != nil {
				return fmt.Errorf("failed to encode cache entry: %w", err)
			}
			if _, err := stmt.Exec(e.Result.DocPath, e.ContentHash, now, string(resultJSON)); err != nil {
				return fmt.Errorf("failed to store cache entry: %w", err)
			}
		}
		return nil
	})
}

// Prune removes cached entries for doc paths no longer present in the
// doc tree. Returns the number of rows removed.
func (c *Cache) Prune(keep map[string]bool) (int, error) {
	rows, err := c.conn.Query(`SELECT doc_path FROM scanned_docs`)
	if err != nil {
		return 0, fmt.Errorf("failed to query cached paths: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	var stale []string
	for rows.Next() {
		var docPath string
		if err := rows.Scan(&docPath); err != nil {
			return 0, fmt.Errorf("failed to scan cached path: %w", err)
		}
		if !keep[docPath] {
			stale = append(stale, docPath)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	err = c.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`DELETE FROM scanned_docs WHERE doc_path = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare delete statement: %w", err)
		}
		defer stmt.Close() //nolint:errcheck // Best effort cleanup

		for _, docPath := range stale {
			if _, err := stmt.Exec(docPath); err != nil {
				return fmt.Errorf("failed to delete cache entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

// Stats reports entry count and on-disk size for health checks.
func (c *Cache) Stats() (Stats, error) {
	stats := Stats{Path: c.dbPath}

	row := c.conn.QueryRow(`SELECT COUNT(*) FROM scanned_docs`)
	if err := row.Scan(&stats.Entries); err != nil {
		return stats, fmt.Errorf("failed to count cache entries: %w", err)
	}

	if info, err := os.Stat(c.dbPath); err == nil {
		stats.SizeBytes = info.Size()
	}

	return stats, nil
}

// withTx executes fn within a transaction, rolling back on error.
func (c *Cache) withTx(fn func(*sql.Tx) error) error {
	tx, err := c.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Error("failed to rollback transaction", map[string]interface{}{
				"error":          err.Error(),
				"rollback_error": rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
