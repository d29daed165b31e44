package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"stratlab/internal/market"
	"stratlab/internal/types"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("backtest run not found")

// ResultStore 管理 backtest_runs/backtest_trades 表。
type ResultStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewResultStore(root string) (*ResultStore, error) {
	if root == "" {
		return nil, fmt.Errorf("result store root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "runs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureResultSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultStore{db: db, path: path}, nil
}

func (s *ResultStore) Path() string { return s.path }

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureResultSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			from_date TEXT,
			to_date TEXT,
			starting_capital TEXT NOT NULL,
			total_trades INTEGER NOT NULL DEFAULT 0,
			win_rate TEXT NOT NULL DEFAULT '0',
			total_pnl TEXT NOT NULL DEFAULT '0',
			max_drawdown TEXT NOT NULL DEFAULT '0',
			config_json TEXT NOT NULL,
			coverage_json TEXT,
			report_json TEXT,
			message TEXT,
			created_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			signal_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			strategy_code TEXT,
			entry_date TEXT NOT NULL,
			entry_price TEXT NOT NULL,
			exit_date TEXT NOT NULL,
			exit_price TEXT NOT NULL,
			quantity TEXT NOT NULL,
			pnl TEXT,
			pnl_pct TEXT,
			exit_reason TEXT,
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON backtest_trades(run_id, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun 在一个事务内写入 run 及其全部交易。
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}
	coverageJSON, err := json.Marshal(run.Coverage)
	if err != nil {
		return err
	}
	reportJSON, err := json.Marshal(run.Report)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(id, status, from_date, to_date, starting_capital, total_trades, win_rate, total_pnl,
			 max_drawdown, config_json, coverage_json, report_json, message, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Status, market.FormatDate(run.Config.From), market.FormatDate(run.Config.To),
		run.Summary.StartingCapital.String(), run.Summary.TotalTrades, run.Summary.WinRate.String(),
		run.Summary.TotalPnL.String(), run.Summary.MaxDrawdown.String(), string(cfgJSON),
		string(coverageJSON), string(reportJSON), run.Message,
		run.CreatedAt.UnixMilli(), nullableTime(run.CompletedAt))
	if err != nil {
		return err
	}
	for i, t := range run.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO backtest_trades
				(run_id, seq, signal_id, symbol, strategy_code, entry_date, entry_price,
				 exit_date, exit_price, quantity, pnl, pnl_pct, exit_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, t.SignalID, t.Symbol, t.StrategyCode, market.FormatDate(t.EntryDate),
			t.EntryPrice.String(), market.FormatDate(t.ExitDate), t.ExitPrice.String(),
			t.Quantity.String(), nullableDecimal(t.PnL), nullableDecimal(t.PnLPct), string(t.ExitReason))
		if err != nil {
			return fmt.Errorf("insert trade %s: %w", t.SignalID, err)
		}
	}
	return tx.Commit()
}

func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, config_json, coverage_json, report_json, message, created_at, completed_at
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, run)
	}
	return list, rows.Err()
}

func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, config_json, coverage_json, report_json, message, created_at, completed_at
		FROM backtest_runs WHERE id=?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// ListTrades 按写入顺序返回 run 的交易。
func (s *ResultStore) ListTrades(ctx context.Context, runID string) ([]types.SimulatedTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT signal_id, symbol, strategy_code, entry_date, entry_price, exit_date, exit_price,
		       quantity, pnl, pnl_pct, exit_reason
		FROM backtest_trades WHERE run_id=? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.SimulatedTrade
	for rows.Next() {
		var (
			t                  types.SimulatedTrade
			strategy, reason   sql.NullString
			entryDate, exitDay string
		)
		if err := rows.Scan(&t.SignalID, &t.Symbol, &strategy, &entryDate, &t.EntryPrice,
			&exitDay, &t.ExitPrice, &t.Quantity, &t.PnL, &t.PnLPct, &reason); err != nil {
			return nil, err
		}
		t.StrategyCode = strategy.String
		t.ExitReason = types.ExitReason(reason.String)
		if t.EntryDate, err = market.ParseDate(entryDate); err != nil {
			return nil, err
		}
		if t.ExitDate, err = market.ParseDate(exitDay); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var cfgStr string
	var coverageStr, reportStr, message sql.NullString
	var createdAt int64
	var completedAt sql.NullInt64
	if err := row.Scan(&run.ID, &run.Status, &cfgStr, &coverageStr, &reportStr, &message, &createdAt, &completedAt); err != nil {
		return Run{}, err
	}
	run.Message = message.String
	run.CreatedAt = timeFromMillis(createdAt)
	if completedAt.Valid {
		run.CompletedAt = timeFromMillis(completedAt.Int64)
	}
	if err := json.Unmarshal([]byte(cfgStr), &run.Config); err != nil {
		return Run{}, err
	}
	if coverageStr.Valid && coverageStr.String != "" {
		if err := json.Unmarshal([]byte(coverageStr.String), &run.Coverage); err != nil {
			return Run{}, err
		}
	}
	if reportStr.Valid && reportStr.String != "" {
		if err := json.Unmarshal([]byte(reportStr.String), &run.Report); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}

func nullableDecimal(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func timeFromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
