package repositories

import (
	"context"
	"strings"

	"github.com/audt-staking/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// ListByAddress returns events raised by or on behalf of address, newest
// first.
func (r *EventRepo) ListByAddress(ctx context.Context, address common.Address, limit, offset int) ([]models.EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	addr := strings.ToLower(address.Hex())
	rows, err := r.pool.Query(ctx, `
		SELECT id, seq, type, address, payload, created_at
		FROM staking_events WHERE address = $1 OR depositor = $1
		ORDER BY seq DESC, idx DESC LIMIT $2 OFFSET $3
	`, addr, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEvent)
}

func (r *EventRepo) ListByType(ctx context.Context, eventType string, limit, offset int) ([]models.EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, seq, type, address, payload, created_at
		FROM staking_events WHERE type = $1
		ORDER BY seq DESC, idx DESC LIMIT $2 OFFSET $3
	`, eventType, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEvent)
}
