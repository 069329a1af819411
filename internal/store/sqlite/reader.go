package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"renko-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to recorded bars for replay.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	slog.Info("sqlite reader ready", "path", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars reads bars for a symbol after afterTS (Unix seconds,
// 0 = all), ordered by timestamp ascending for correct replay order.
func (r *Reader) ReadBars(symbol string, afterTS int64) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Symbols lists the distinct symbols present in the recording.
func (r *Reader) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

func scanBars(rows *sql.Rows) ([]model.Bar, error) {
	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		var volume sql.NullFloat64
		if err := rows.Scan(&b.Symbol, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bar: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		b.Volume = volume.Float64
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}
