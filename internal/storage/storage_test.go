package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/pkg/types"
)

func samplePosition(id, userID string, status types.PositionStatus) *types.Position {
	return &types.Position{
		ID:       id,
		UserID:   userID,
		MarketID: "0xmarket",
		LegA: types.PositionLeg{
			Venue:   "amm",
			OrderID: "a-1",
			TokenID: "yes-token",
			Side:    types.SideBuy,
			Price:   types.PriceFromFloat(0.48),
			Size:    50 * types.StableUnits,
		},
		LegB: types.PositionLeg{
			Venue:   "clob",
			OrderID: "b-1",
			TokenID: "no-token",
			Side:    types.SideBuy,
			Price:   types.PriceFromFloat(0.49),
			Size:    50 * types.StableUnits,
		},
		Status:         status,
		TotalCost:      types.PriceFromFloat(0.97),
		ExpectedPayout: types.Scale1e18,
		SpreadBps:      300,
		SizeUnits:      50 * types.StableUnits,
		OpenedAt:       time.Now().UTC().Truncate(time.Second),
	}
}

func TestRowRoundTrip(t *testing.T) {
	pos := samplePosition("p1", "user-1", types.PositionOpen)

	row, err := toRow(pos)
	require.NoError(t, err)

	got, err := row.toPosition()
	require.NoError(t, err)

	assert.Equal(t, pos.ID, got.ID)
	assert.Equal(t, pos.Status, got.Status)
	assert.Equal(t, pos.LegA.OrderID, got.LegA.OrderID)
	assert.Equal(t, 0, pos.LegA.Price.Cmp(got.LegA.Price))
	assert.Equal(t, 0, pos.TotalCost.Cmp(got.TotalCost))
	assert.True(t, got.ClosedAt.IsZero())
}

func TestPostgres_InsertPosition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newPostgresWithDB(db, zap.NewNop())

	mock.ExpectExec("INSERT INTO positions").
		WithArgs(
			"p1", "user-1", "0xmarket", "OPEN",
			sqlmock.AnyArg(), sqlmock.AnyArg(),
			"970000000000000000", "1000000000000000000",
			int64(300), int64(50*types.StableUnits), int64(0),
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO position_transitions").
		WithArgs("p1", "OPEN", int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	pos := samplePosition("p1", "user-1", types.PositionOpen)
	require.NoError(t, repo.InsertPosition(context.Background(), pos))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdatePosition_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newPostgresWithDB(db, zap.NewNop())

	mock.ExpectExec("UPDATE positions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	pos := samplePosition("missing", "user-1", types.PositionFilled)
	err = repo.UpdatePosition(context.Background(), pos)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.db")

	repo, err := NewSQLiteRepository(path, zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()

	open := samplePosition("p1", "user-1", types.PositionOpen)
	partial := samplePosition("p2", "user-1", types.PositionPartial)
	closed := samplePosition("p3", "user-1", types.PositionClosed)
	closed.ClosedAt = time.Now().UTC()
	otherUser := samplePosition("p4", "user-2", types.PositionOpen)

	for _, pos := range []*types.Position{open, partial, closed, otherUser} {
		require.NoError(t, repo.InsertPosition(ctx, pos))
	}

	// Only the user's non-terminal positions come back.
	got, err := repo.ListOpenPositions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p2", got[1].ID)
	assert.Equal(t, 0, got[0].TotalCost.Cmp(open.TotalCost))
	assert.Equal(t, types.SideBuy, got[0].LegA.Side)

	// Transition p1 to FILLED and verify it drops out of the open set.
	open.Status = types.PositionFilled
	open.LegA.Filled = true
	open.LegB.Filled = true
	require.NoError(t, repo.UpdatePosition(ctx, open))

	got, err = repo.ListOpenPositions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].ID)

	// Every write left an audit row: four inserts plus one update.
	var transitions int
	require.NoError(t, repo.db.QueryRow(
		`SELECT COUNT(*) FROM position_transitions`).Scan(&transitions))
	assert.Equal(t, 5, transitions)

	var lastStatus string
	require.NoError(t, repo.db.QueryRow(
		`SELECT status FROM position_transitions WHERE position_id = 'p1' ORDER BY seq DESC LIMIT 1`).
		Scan(&lastStatus))
	assert.Equal(t, "FILLED", lastStatus)
}

func TestConsoleRepository_NoState(t *testing.T) {
	repo := NewConsoleRepository(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.InsertPosition(ctx, samplePosition("p1", "u", types.PositionOpen)))

	got, err := repo.ListOpenPositions(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, repo.Close())
}
