package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"downie/internal/config"
)

// Entry is one archived download.
type Entry struct {
	ID           int64
	RequestID    string
	URL          string
	Platform     string
	Title        string
	FormatID     string
	FilePath     string
	FileSize     int64
	DownloadTime time.Duration
	Processed    bool
	CreatedAt    time.Time
}

// Store manages the download archive backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const entryColumns = "id, request_id, url, platform, title, format_id, file_path, file_size, download_ms, processed, created_at"

// Open initializes or connects to the history database at cfg.Paths.HistoryDB.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.Paths.HistoryDB)
}

// OpenPath opens the database at an explicit path, creating parent directories.
func OpenPath(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record inserts an entry and returns it with ID and CreatedAt populated.
func (s *Store) Record(ctx context.Context, entry Entry) (Entry, error) {
	if strings.TrimSpace(entry.URL) == "" || strings.TrimSpace(entry.FilePath) == "" {
		return Entry{}, fmt.Errorf("history entry requires url and file path")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO downloads (
            request_id, url, platform, title, format_id,
            file_path, file_size, download_ms, processed, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(entry.RequestID),
		entry.URL,
		nullableString(entry.Platform),
		nullableString(entry.Title),
		nullableString(entry.FormatID),
		entry.FilePath,
		entry.FileSize,
		entry.DownloadTime.Milliseconds(),
		boolToInt(entry.Processed),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert history entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("last insert id: %w", err)
	}
	entry.ID = id
	return entry, nil
}

// List returns the newest entries first. A limit of zero returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM downloads ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Clear removes every entry and returns the number deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM downloads")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry      Entry
		requestID  sql.NullString
		platform   sql.NullString
		title      sql.NullString
		formatID   sql.NullString
		downloadMS int64
		processed  int64
		createdRaw string
	)
	if err := scanner.Scan(
		&entry.ID,
		&requestID,
		&entry.URL,
		&platform,
		&title,
		&formatID,
		&entry.FilePath,
		&entry.FileSize,
		&downloadMS,
		&processed,
		&createdRaw,
	); err != nil {
		return Entry{}, err
	}
	entry.RequestID = requestID.String
	entry.Platform = platform.String
	entry.Title = title.String
	entry.FormatID = formatID.String
	entry.DownloadTime = time.Duration(downloadMS) * time.Millisecond
	entry.Processed = processed != 0
	if ts, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		entry.CreatedAt = ts
	}
	return entry, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
