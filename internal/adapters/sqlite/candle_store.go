package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// CandleStore caches candles in SQLite so repeated backtests do not hit the exchange.
type CandleStore struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite candle store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewCandleStore opens (and creates if needed) the database at cfg.DBPath.
func NewCandleStore(cfg Config) (*CandleStore, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite candle store: %w", ports.ErrConfiguration)
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/candles.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite candle store initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite candle store initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite candle store initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &CandleStore{db: db, logger: cfg.Logger}
	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		cfg.Logger.Error(context.Background(), err, "SQLite candle store initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite candle store ready", map[string]interface{}{"path": dbPath})
	return store, nil
}

func (s *CandleStore) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS candles (
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		open_time INTEGER NOT NULL,
		close_time INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		PRIMARY KEY (symbol, timeframe, open_time)
	);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (s *CandleStore) Close() error {
	if s.db != nil {
		s.logger.Info(context.Background(), "Closing SQLite database connection")
		return s.db.Close()
	}
	return nil
}

// SaveCandles upserts candles keyed by (symbol, timeframe, open_time) in one transaction.
func (s *CandleStore) SaveCandles(ctx context.Context, symbol string, tf domain.Timeframe, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	const query = `
	INSERT INTO candles (symbol, timeframe, open_time, close_time, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, timeframe, open_time) DO UPDATE SET
		close_time = excluded.close_time, open = excluded.open, high = excluded.high,
		low = excluded.low, close = excluded.close, volume = excluded.volume`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", ports.ErrQueryFailed, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare candle upsert: %w: %w", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, string(tf), c.OpenTime, c.CloseTime, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("failed to upsert candle %s %s %d: %w: %w", symbol, tf, c.OpenTime, ports.ErrQueryFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit candles: %w: %w", ports.ErrQueryFailed, err)
	}
	s.logger.Debug(ctx, "Candles saved", map[string]interface{}{"symbol": symbol, "timeframe": string(tf), "count": len(candles)})
	return nil
}

// LoadCandles returns up to limit candles with after < open_time <= to, oldest
// first. A zero to means no upper bound; a non-positive limit means no limit.
func (s *CandleStore) LoadCandles(ctx context.Context, symbol string, tf domain.Timeframe, after, to int64, limit int) ([]domain.Candle, error) {
	const query = `
	SELECT open_time, close_time, open, high, low, close, volume
	FROM candles
	WHERE symbol = ? AND timeframe = ? AND open_time > ? AND (? = 0 OR open_time <= ?)
	ORDER BY open_time ASC
	LIMIT ?`

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, query, symbol, string(tf), after, to, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles for %s %s: %w: %w", symbol, tf, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.OpenTime, &c.CloseTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle row: %w: %w", ports.ErrQueryFailed, err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candle rows: %w: %w", ports.ErrQueryFailed, err)
	}
	return candles, nil
}

// CountCandles returns how many candles are stored for symbol and tf.
func (s *CandleStore) CountCandles(ctx context.Context, symbol string, tf domain.Timeframe) (int, error) {
	const query = `SELECT COUNT(*) FROM candles WHERE symbol = ? AND timeframe = ?`
	var n int
	if err := s.db.QueryRowContext(ctx, query, symbol, string(tf)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count candles for %s %s: %w: %w", symbol, tf, ports.ErrQueryFailed, err)
	}
	return n, nil
}

// Loader returns a ChunkLoader paging stored candles with from <= open_time <= to
// in pages of pageSize. A zero to means no upper bound.
func (s *CandleStore) Loader(symbol string, tf domain.Timeframe, from, to int64, pageSize int) *Loader {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Loader{store: s, symbol: symbol, timeframe: tf, cursor: from - 1, to: to, pageSize: pageSize}
}

// Loader pages candles out of a CandleStore by open time.
type Loader struct {
	store     *CandleStore
	symbol    string
	timeframe domain.Timeframe
	cursor    int64 // open time of the last returned candle
	to        int64
	pageSize  int
}

var _ ports.ChunkLoader[domain.Candle] = (*Loader)(nil)

// LoadNextChunk returns the next page. A short page means the range is drained.
func (l *Loader) LoadNextChunk(ctx context.Context) (ports.Chunk[domain.Candle], error) {
	candles, err := l.store.LoadCandles(ctx, l.symbol, l.timeframe, l.cursor, l.to, l.pageSize)
	if err != nil {
		return ports.Chunk[domain.Candle]{}, err
	}
	status := ports.ChunkHasMore
	if len(candles) < l.pageSize {
		status = ports.ChunkExhausted
	}
	if len(candles) > 0 {
		l.cursor = candles[len(candles)-1].OpenTime
	}
	return ports.Chunk[domain.Candle]{Items: candles, Status: status}, nil
}
