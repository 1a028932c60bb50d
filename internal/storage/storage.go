package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/goccy/go-json"

	"github.com/quantfold/crossarb/pkg/types"
)

// Repository is the durable transition log of positions. Every position
// insert and status change flows through it; the in-memory store reloads
// non-terminal positions from it on agent restart.
type Repository interface {
	// InsertPosition records a newly opened position.
	InsertPosition(ctx context.Context, pos *types.Position) error

	// UpdatePosition persists a position transition.
	UpdatePosition(ctx context.Context, pos *types.Position) error

	// ListOpenPositions returns a user's non-terminal positions.
	ListOpenPositions(ctx context.Context, userID string) ([]*types.Position, error)

	// Close releases the underlying connection.
	Close() error
}

// positionRow is the flat SQL image of a position. Legs travel as JSON blobs
// and 1e18-scaled amounts as decimal strings.
type positionRow struct {
	id             string
	userID         string
	marketID       string
	status         string
	legA           []byte
	legB           []byte
	totalCost      string
	expectedPayout string
	spreadBps      int64
	sizeUnits      int64
	pnl            int64
	openedAt       time.Time
	closedAt       sql.NullTime
}

func toRow(pos *types.Position) (*positionRow, error) {
	legA, err := json.Marshal(pos.LegA)
	if err != nil {
		return nil, fmt.Errorf("marshal leg A: %w", err)
	}
	legB, err := json.Marshal(pos.LegB)
	if err != nil {
		return nil, fmt.Errorf("marshal leg B: %w", err)
	}

	row := &positionRow{
		id:             pos.ID,
		userID:         pos.UserID,
		marketID:       pos.MarketID,
		status:         string(pos.Status),
		legA:           legA,
		legB:           legB,
		totalCost:      pos.TotalCost.String(),
		expectedPayout: pos.ExpectedPayout.String(),
		spreadBps:      pos.SpreadBps,
		sizeUnits:      pos.SizeUnits,
		pnl:            pos.PnL,
		openedAt:       pos.OpenedAt,
	}
	if !pos.ClosedAt.IsZero() {
		row.closedAt = sql.NullTime{Time: pos.ClosedAt, Valid: true}
	}
	return row, nil
}

func (r *positionRow) toPosition() (*types.Position, error) {
	pos := &types.Position{
		ID:        r.id,
		UserID:    r.userID,
		MarketID:  r.marketID,
		Status:    types.PositionStatus(r.status),
		SpreadBps: r.spreadBps,
		SizeUnits: r.sizeUnits,
		PnL:       r.pnl,
		OpenedAt:  r.openedAt,
	}

	if err := json.Unmarshal(r.legA, &pos.LegA); err != nil {
		return nil, fmt.Errorf("unmarshal leg A: %w", err)
	}
	if err := json.Unmarshal(r.legB, &pos.LegB); err != nil {
		return nil, fmt.Errorf("unmarshal leg B: %w", err)
	}

	var ok bool
	pos.TotalCost, ok = new(big.Int).SetString(r.totalCost, 10)
	if !ok {
		return nil, fmt.Errorf("parse total cost %q", r.totalCost)
	}
	pos.ExpectedPayout, ok = new(big.Int).SetString(r.expectedPayout, 10)
	if !ok {
		return nil, fmt.Errorf("parse expected payout %q", r.expectedPayout)
	}

	if r.closedAt.Valid {
		pos.ClosedAt = r.closedAt.Time
	}

	return pos, nil
}

// openStatuses lists the states ListOpenPositions reloads. PARTIAL is
// included: an interrupted unwind must resume after restart.
var openStatuses = []string{
	string(types.PositionOpen),
	string(types.PositionPartial),
}
