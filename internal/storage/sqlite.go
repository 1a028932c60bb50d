package storage

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/quantfold/crossarb/pkg/types"
)

// SQLiteRepository implements Repository on an embedded SQLite file. Suited
// for single-host deployments without a database server.
type SQLiteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS positions (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	market_id       TEXT NOT NULL,
	status          TEXT NOT NULL,
	leg_a           TEXT NOT NULL,
	leg_b           TEXT NOT NULL,
	total_cost      TEXT NOT NULL,
	expected_payout TEXT NOT NULL,
	spread_bps      INTEGER NOT NULL,
	size_units      INTEGER NOT NULL,
	pnl             INTEGER NOT NULL,
	opened_at       TIMESTAMP NOT NULL,
	closed_at       TIMESTAMP
);
CREATE INDEX IF NOT EXISTS positions_user_status_idx ON positions (user_id, status);
CREATE TABLE IF NOT EXISTS position_transitions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	position_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	pnl         INTEGER NOT NULL,
	recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS position_transitions_position_idx ON position_transitions (position_id);
`

// NewSQLiteRepository opens (or creates) the database file and ensures the
// schema exists.
func NewSQLiteRepository(path string, logger *zap.Logger) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Serialized writes; the driver is not safe for concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logger.Info("sqlite-repository-opened", zap.String("path", path))

	return &SQLiteRepository{db: db, logger: logger}, nil
}

// InsertPosition records a newly opened position.
func (s *SQLiteRepository) InsertPosition(ctx context.Context, pos *types.Position) error {
	row, err := toRow(pos)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO positions (
			id, user_id, market_id, status, leg_a, leg_b,
			total_cost, expected_payout, spread_bps, size_units, pnl,
			opened_at, closed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		row.id, row.userID, row.marketID, row.status, string(row.legA), string(row.legB),
		row.totalCost, row.expectedPayout, row.spreadBps, row.sizeUnits, row.pnl,
		row.openedAt, row.closedAt,
	)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}

	WritesTotal.WithLabelValues("sqlite", "insert").Inc()
	return s.appendTransition(ctx, pos)
}

func (s *SQLiteRepository) appendTransition(ctx context.Context, pos *types.Position) error {
	query := `INSERT INTO position_transitions (position_id, status, pnl) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, pos.ID, string(pos.Status), pos.PnL)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

// UpdatePosition persists a position transition.
func (s *SQLiteRepository) UpdatePosition(ctx context.Context, pos *types.Position) error {
	row, err := toRow(pos)
	if err != nil {
		return err
	}

	query := `
		UPDATE positions SET
			status = ?, leg_a = ?, leg_b = ?, pnl = ?, closed_at = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		row.status, string(row.legA), string(row.legB), row.pnl, row.closedAt, row.id,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update position %s: not found", pos.ID)
	}

	WritesTotal.WithLabelValues("sqlite", "update").Inc()
	return s.appendTransition(ctx, pos)
}

// ListOpenPositions returns a user's non-terminal positions.
func (s *SQLiteRepository) ListOpenPositions(ctx context.Context, userID string) ([]*types.Position, error) {
	query := `
		SELECT id, user_id, market_id, status, leg_a, leg_b,
			total_cost, expected_payout, spread_bps, size_units, pnl,
			opened_at, closed_at
		FROM positions
		WHERE user_id = ? AND status IN (?, ?)
		ORDER BY opened_at
	`

	rows, err := s.db.QueryContext(ctx, query, userID, openStatuses[0], openStatuses[1])
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}
	defer rows.Close()

	var positions []*types.Position
	for rows.Next() {
		var (
			r          positionRow
			legA, legB string
		)
		if err := rows.Scan(
			&r.id, &r.userID, &r.marketID, &r.status, &legA, &legB,
			&r.totalCost, &r.expectedPayout, &r.spreadBps, &r.sizeUnits, &r.pnl,
			&r.openedAt, &r.closedAt,
		); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		r.legA, r.legB = []byte(legA), []byte(legB)

		pos, err := r.toPosition()
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}

	return positions, rows.Err()
}

// Close closes the database file.
func (s *SQLiteRepository) Close() error {
	s.logger.Info("closing-sqlite-repository")
	return s.db.Close()
}
