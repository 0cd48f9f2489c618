// Package journal persists committed engine operations so that state can be
// rebuilt by replay.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/audt-staking/backend/internal/models"
)

// ErrSeqConflict is returned when an append does not extend the journal by
// exactly one sequence number.
var ErrSeqConflict = errors.New("journal sequence conflict")

// Memory is a process-local journal.
type Memory struct {
	mu  sync.Mutex
	ops []models.Operation
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, op models.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if op.Seq != uint64(len(m.ops)) {
		return fmt.Errorf("append seq %d at length %d: %w", op.Seq, len(m.ops), ErrSeqConflict)
	}
	m.ops = append(m.ops, op)
	return nil
}

func (m *Memory) Load(_ context.Context) ([]models.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Operation, len(m.ops))
	copy(out, m.ops)
	return out, nil
}

func (m *Memory) Close() error { return nil }
