package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"spotbot/internal/models"
)

// TradeJournal persists trade records so history outlives the process.
// Aggregates are never restored from it.
type TradeJournal struct {
	db *sql.DB
}

func NewTradeJournal(path string) (*TradeJournal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite allows a single writer
	db.SetMaxIdleConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &TradeJournal{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		symbol TEXT NOT NULL,
		type TEXT NOT NULL,
		price DECIMAL(20,8),
		amount DECIMAL(20,8),
		total_quote DECIMAL(20,8),
		profit DECIMAL(20,8),
		profit_pct DECIMAL(10,4),
		status TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);`)
	return err
}

// Append writes one record
func (j *TradeJournal) Append(ctx context.Context, r models.TradeRecord) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO trades (timestamp, symbol, type, price, amount, total_quote, profit, profit_pct, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp.UTC(), r.Symbol, string(r.Type), r.Price, r.Amount, r.TotalQuote, r.Profit, r.ProfitPct, string(r.Status))
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", r.Symbol, err)
	}
	return nil
}

// Recent returns up to limit records, newest first. An empty symbol matches all.
func (j *TradeJournal) Recent(ctx context.Context, symbol string, limit int) ([]models.TradeRecord, error) {
	query := `SELECT timestamp, symbol, type, price, amount, total_quote, profit, profit_pct, status FROM trades`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var records []models.TradeRecord
	for rows.Next() {
		var (
			r           models.TradeRecord
			ts          time.Time
			typ, status string
		)
		if err := rows.Scan(&ts, &r.Symbol, &typ, &r.Price, &r.Amount, &r.TotalQuote, &r.Profit, &r.ProfitPct, &status); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		r.Timestamp = ts
		r.Type = models.TradeType(typ)
		r.Status = models.TradeStatus(status)
		records = append(records, r)
	}
	return records, rows.Err()
}

// RealizedProfit sums the profit of every journaled sell
func (j *TradeJournal) RealizedProfit(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := j.db.QueryRowContext(ctx, `SELECT SUM(profit) FROM trades WHERE type = ?`, string(models.TradeSell)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum profit: %w", err)
	}
	return total.Float64, nil
}

func (j *TradeJournal) Close() error {
	return j.db.Close()
}
