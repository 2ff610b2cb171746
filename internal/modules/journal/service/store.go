package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/Mr-Gerald/NEXUSAI/internal/models"
	"github.com/Mr-Gerald/NEXUSAI/pkg/db"
)

// Store is the durable trade journal: the strategy's long-term memory plus
// the closed-trade blotter and the persisted activation flag.
type Store struct {
	tx *db.PgTxManager
}

func NewStore(tx *db.PgTxManager) *Store {
	return &Store{tx: tx}
}

const schema = `
CREATE TABLE IF NOT EXISTS trade_journal (
	id BIGSERIAL PRIMARY KEY,
	asset TEXT NOT NULL,
	strategy TEXT NOT NULL,
	regime TEXT NOT NULL,
	h1_trend_strength DOUBLE PRECISION,
	m15_rsi DOUBLE PRECISION,
	m15_atr DOUBLE PRECISION,
	outcome TEXT NOT NULL,
	pnl DOUBLE PRECISION NOT NULL,
	ts TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS closed_trades (
	id BIGSERIAL PRIMARY KEY,
	asset TEXT NOT NULL,
	direction TEXT NOT NULL,
	size DOUBLE PRECISION NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price DOUBLE PRECISION NOT NULL,
	pnl DOUBLE PRECISION NOT NULL,
	strategy TEXT,
	regime TEXT,
	ts TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.tx.Conn().Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "ensure journal schema")
	}
	_, err := s.tx.Conn().Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ('core_active', 'false') ON CONFLICT (key) DO NOTHING`)
	return errors.Wrap(err, "seed activation flag")
}

// RecentOutcomes returns the outcomes of the most recent trades for one
// asset+strategy, newest first.
func (s *Store) RecentOutcomes(ctx context.Context, asset, strategy string, limit int) ([]models.Outcome, error) {
	rows, err := s.tx.Conn().Query(ctx,
		`SELECT outcome FROM trade_journal WHERE asset = $1 AND strategy = $2 ORDER BY ts DESC LIMIT $3`,
		asset, strategy, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query journal outcomes")
	}
	defer rows.Close()

	var out []models.Outcome
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, errors.Wrap(err, "scan journal outcome")
		}
		out = append(out, models.Outcome(o))
	}
	return out, errors.Wrap(rows.Err(), "iterate journal outcomes")
}

func (s *Store) AppendJournalEntry(ctx context.Context, e models.JournalEntry) error {
	return s.tx.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO trade_journal (asset, strategy, regime, h1_trend_strength, m15_rsi, m15_atr, outcome, pnl, ts)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.Asset, e.Strategy, e.Regime,
			e.Context.H1TrendStrength, e.Context.RSI, e.Context.ATR,
			string(e.Outcome), e.PnL, e.Timestamp)
		return errors.Wrap(err, "insert journal entry")
	})
}

func (s *Store) AppendClosedTrade(ctx context.Context, t models.ClosedTrade) error {
	return s.tx.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO closed_trades (asset, direction, size, entry_price, exit_price, pnl, strategy, regime, ts)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			t.Asset, string(t.Direction), t.Size, t.EntryPrice, t.ExitPrice, t.PnL, t.Strategy, t.Regime, t.Timestamp)
		return errors.Wrap(err, "insert closed trade")
	})
}

func (s *Store) IsActive(ctx context.Context) (bool, error) {
	var v string
	err := s.tx.Conn().QueryRow(ctx,
		`SELECT value FROM settings WHERE key = 'core_active'`).Scan(&v)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "read activation flag")
	}
	return v == "true", nil
}

func (s *Store) SetActive(ctx context.Context, active bool) error {
	v := "false"
	if active {
		v = "true"
	}
	_, err := s.tx.Conn().Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ('core_active', $1)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, v)
	return errors.Wrap(err, "write activation flag")
}
