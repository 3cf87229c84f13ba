package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"climate-monitor/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/scan-readings.sql
var scanReadingsSQL string

//go:embed sql/insert-reading.sql
var insertReadingSQL string

type SQLiteOptions struct {
	// DSN is used verbatim when set; otherwise one is built from Path.
	DSN          string
	Path         string
	MaxOpenConns int
}

// SQLiteReadingStore keeps each record's JSON payload in one row.
type SQLiteReadingStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens the database, applies the schema and returns the store.
func OpenSQLite(ctx context.Context, opts SQLiteOptions, logger *slog.Logger) (*SQLiteReadingStore, error) {
	dsn, err := buildDSN(opts)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	s, err := NewSQLiteReadingStore(ctx, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteReadingStore wraps an open database and ensures the schema exists.
func NewSQLiteReadingStore(ctx context.Context, db *sql.DB, logger *slog.Logger) (*SQLiteReadingStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteReadingStore{db: db, logger: logger}, nil
}

// Scan returns every stored record in insertion order. A row whose payload
// is not valid JSON comes back without sensor data.
func (s *SQLiteReadingStore) Scan(ctx context.Context) ([]models.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, scanReadingsSQL)
	if err != nil {
		return nil, fmt.Errorf("scan readings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close readings rows", "error", err)
		}
	}()

	var out []models.RawRecord
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		rec := models.RawRecord{ID: id}
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			s.logger.Warn("undecodable reading payload", "id", id, "error", err)
			rec = models.RawRecord{ID: id}
		}
		rec.ID = id
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteReadingStore) Insert(ctx context.Context, rec models.RawRecord) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	payload, err := json.Marshal(models.RawRecord{SensorData: rec.SensorData})
	if err != nil {
		return "", fmt.Errorf("encode reading: %w", err)
	}
	receivedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, insertReadingSQL, id, string(payload), receivedAt); err != nil {
		return "", fmt.Errorf("insert reading: %w", err)
	}
	return id, nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteReadingStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteReadingStore) Close() error {
	return s.db.Close()
}

func buildDSN(opts SQLiteOptions) (string, error) {
	if opts.DSN != "" {
		return opts.DSN, nil
	}
	path := opts.Path
	if path == "" {
		return "", fmt.Errorf("sqlite path is required")
	}
	dir := filepath.Dir(path)
	if dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
