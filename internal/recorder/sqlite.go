package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets dashboards read while the server writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("component", "recorder").Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id                      INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp               INTEGER NOT NULL,
			ticker                  TEXT NOT NULL,
			current_price           REAL,
			current_z               REAL,
			current_lookback_return REAL,
			lookback                INTEGER,
			horizon                 INTEGER,
			forecast_p05            REAL,
			forecast_p50            REAL,
			forecast_p95            REAL,
			warnings                INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ticker_ts ON analysis_runs(ticker, timestamp)`,

		`CREATE TABLE IF NOT EXISTS ledger_events (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			ticker         TEXT NOT NULL,
			frequency      TEXT,
			amount         REAL,
			purchases      INTEGER,
			total_invested REAL,
			final_value    REAL,
			return_pct     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_ts ON ledger_events(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAnalysis(run *AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := run.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}
	_, err := r.db.Exec(`INSERT INTO analysis_runs
		(timestamp, ticker, current_price, current_z, current_lookback_return,
		 lookback, horizon, forecast_p05, forecast_p50, forecast_p95, warnings)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		ts.UnixMilli(), run.Ticker, run.CurrentPrice, run.CurrentZ, run.CurrentLookbackReturn,
		run.Lookback, run.Horizon, run.ForecastP05, run.ForecastP50, run.ForecastP95, run.Warnings,
	)
	return err
}

func (r *SQLiteRecorder) RecordLedger(evt *LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO ledger_events
		(timestamp, ticker, frequency, amount, purchases, total_invested, final_value, return_pct)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.now().UnixMilli(), evt.Ticker, evt.Frequency, evt.Amount,
		evt.Purchases, evt.TotalInvested, evt.FinalValue, evt.ReturnPct,
	)
	return err
}

func (r *SQLiteRecorder) RecentRuns(ticker string, limit int) ([]AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT timestamp, ticker, current_price, current_z, current_lookback_return,
		lookback, horizon, forecast_p05, forecast_p50, forecast_p95, warnings
		FROM analysis_runs WHERE ticker = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []AnalysisRun{}
	for rows.Next() {
		var run AnalysisRun
		var ts int64
		if err := rows.Scan(&ts, &run.Ticker, &run.CurrentPrice, &run.CurrentZ, &run.CurrentLookbackReturn,
			&run.Lookback, &run.Horizon, &run.ForecastP05, &run.ForecastP50, &run.ForecastP95, &run.Warnings); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Timestamp = time.UnixMilli(ts).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
