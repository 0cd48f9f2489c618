package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/audt-staking/backend/internal/journal"
	"github.com/audt-staking/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// JournalRepo is the PostgreSQL operation journal. An operation and its
// events are written in one transaction.
type JournalRepo struct {
	pool *pgxpool.Pool
}

func NewJournalRepo(pool *pgxpool.Pool) *JournalRepo {
	return &JournalRepo{pool: pool}
}

func (r *JournalRepo) Append(ctx context.Context, op models.Operation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var next uint64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM operations`).Scan(&next); err != nil {
		return err
	}
	if op.Seq != next {
		return fmt.Errorf("append seq %d at length %d: %w", op.Seq, next, journal.ErrSeqConflict)
	}

	var args any
	if len(op.Args) > 0 {
		args = string(op.Args)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO operations (seq, kind, caller, ts, args)
		VALUES ($1, $2, $3, $4, $5)
	`, int64(op.Seq), op.Kind, strings.ToLower(op.Caller.Hex()), int64(op.Timestamp), args); err != nil {
		return err
	}

	for i, ev := range op.Events {
		if _, err := tx.Exec(ctx, `
			INSERT INTO staking_events (id, seq, idx, type, address, depositor, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, ev.ID, int64(ev.Seq), i, ev.Type, strings.ToLower(ev.Address.Hex()), depositorOf(ev), ev.Payload, ev.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Load returns every operation with its events in sequence order.
func (r *JournalRepo) Load(ctx context.Context) ([]models.Operation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seq, kind, caller, ts, COALESCE(args::text, '')
		FROM operations ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}

	var ops []models.Operation
	for rows.Next() {
		var (
			op          models.Operation
			seq, ts     int64
			caller, raw string
		)
		if err := rows.Scan(&seq, &op.Kind, &caller, &ts, &raw); err != nil {
			rows.Close()
			return nil, err
		}
		op.Seq, op.Timestamp = uint64(seq), uint64(ts)
		op.Caller = common.HexToAddress(caller)
		if raw != "" {
			op.Args = []byte(raw)
		}
		ops = append(ops, op)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	evRows, err := r.pool.Query(ctx, `
		SELECT id, seq, type, address, payload, created_at
		FROM staking_events ORDER BY seq, idx
	`)
	if err != nil {
		return nil, err
	}
	recs, err := pgx.CollectRows(evRows, scanEvent)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.Seq < uint64(len(ops)) {
			ops[rec.Seq].Events = append(ops[rec.Seq].Events, rec)
		}
	}
	return ops, nil
}

func scanEvent(row pgx.CollectableRow) (models.EventRecord, error) {
	var (
		rec     models.EventRecord
		seq     int64
		address string
	)
	if err := row.Scan(&rec.ID, &seq, &rec.Type, &address, &rec.Payload, &rec.CreatedAt); err != nil {
		return rec, err
	}
	rec.Seq = uint64(seq)
	rec.Address = common.HexToAddress(address)
	return rec, nil
}

func depositorOf(ev models.EventRecord) *string {
	s, ok := ev.Payload["depositor"].(string)
	if !ok || s == "" {
		return nil
	}
	s = strings.ToLower(s)
	return &s
}
