package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/pkg/types"
)

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS positions (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	market_id       TEXT NOT NULL,
	status          TEXT NOT NULL,
	leg_a           JSONB NOT NULL,
	leg_b           JSONB NOT NULL,
	total_cost      TEXT NOT NULL,
	expected_payout TEXT NOT NULL,
	spread_bps      BIGINT NOT NULL,
	size_units      BIGINT NOT NULL,
	pnl             BIGINT NOT NULL,
	opened_at       TIMESTAMPTZ NOT NULL,
	closed_at       TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS positions_user_status_idx ON positions (user_id, status);
CREATE TABLE IF NOT EXISTS position_transitions (
	seq         BIGSERIAL PRIMARY KEY,
	position_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	pnl         BIGINT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS position_transitions_position_idx ON position_transitions (position_id);
`

// NewPostgresRepository connects and ensures the schema exists.
func NewPostgresRepository(cfg *PostgresConfig) (*PostgresRepository, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	cfg.Logger.Info("postgres-repository-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresRepository{db: db, logger: cfg.Logger}, nil
}

// newPostgresWithDB wraps an existing connection; used by tests.
func newPostgresWithDB(db *sql.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// InsertPosition records a newly opened position.
func (p *PostgresRepository) InsertPosition(ctx context.Context, pos *types.Position) error {
	row, err := toRow(pos)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO positions (
			id, user_id, market_id, status, leg_a, leg_b,
			total_cost, expected_payout, spread_bps, size_units, pnl,
			opened_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = p.db.ExecContext(ctx, query,
		row.id, row.userID, row.marketID, row.status, row.legA, row.legB,
		row.totalCost, row.expectedPayout, row.spreadBps, row.sizeUnits, row.pnl,
		row.openedAt, row.closedAt,
	)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}

	WritesTotal.WithLabelValues("postgres", "insert").Inc()
	return p.appendTransition(ctx, pos)
}

// appendTransition records one row of the append-only audit log. The log is
// written after the position image so a crash between the two loses audit
// detail, never position state.
func (p *PostgresRepository) appendTransition(ctx context.Context, pos *types.Position) error {
	query := `INSERT INTO position_transitions (position_id, status, pnl) VALUES ($1, $2, $3)`
	_, err := p.db.ExecContext(ctx, query, pos.ID, string(pos.Status), pos.PnL)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

// UpdatePosition persists a position transition.
func (p *PostgresRepository) UpdatePosition(ctx context.Context, pos *types.Position) error {
	row, err := toRow(pos)
	if err != nil {
		return err
	}

	query := `
		UPDATE positions SET
			status = $2, leg_a = $3, leg_b = $4, pnl = $5, closed_at = $6
		WHERE id = $1
	`

	res, err := p.db.ExecContext(ctx, query,
		row.id, row.status, row.legA, row.legB, row.pnl, row.closedAt,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update position %s: not found", pos.ID)
	}

	WritesTotal.WithLabelValues("postgres", "update").Inc()
	return p.appendTransition(ctx, pos)
}

// ListOpenPositions returns a user's non-terminal positions.
func (p *PostgresRepository) ListOpenPositions(ctx context.Context, userID string) ([]*types.Position, error) {
	query := `
		SELECT id, user_id, market_id, status, leg_a, leg_b,
			total_cost, expected_payout, spread_bps, size_units, pnl,
			opened_at, closed_at
		FROM positions
		WHERE user_id = $1 AND status = ANY($2)
		ORDER BY opened_at
	`

	rows, err := p.db.QueryContext(ctx, query, userID, pq.Array(openStatuses))
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}
	defer rows.Close()

	var positions []*types.Position
	for rows.Next() {
		var r positionRow
		if err := rows.Scan(
			&r.id, &r.userID, &r.marketID, &r.status, &r.legA, &r.legB,
			&r.totalCost, &r.expectedPayout, &r.spreadBps, &r.sizeUnits, &r.pnl,
			&r.openedAt, &r.closedAt,
		); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}

		pos, err := r.toPosition()
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}

	return positions, rows.Err()
}

// Close closes the connection pool.
func (p *PostgresRepository) Close() error {
	p.logger.Info("closing-postgres-repository")
	return p.db.Close()
}
