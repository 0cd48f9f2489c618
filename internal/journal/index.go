package journal

import (
	"context"
	"strings"

	"github.com/audt-staking/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// Loader is any journal backend.
type Loader interface {
	Load(ctx context.Context) ([]models.Operation, error)
}

// EventIndex answers event history queries by scanning a journal. It serves
// backends that have no query layer of their own.
type EventIndex struct {
	src Loader
}

func NewEventIndex(src Loader) *EventIndex {
	return &EventIndex{src: src}
}

// ListByAddress returns events raised by or on behalf of address, newest
// first.
func (x *EventIndex) ListByAddress(ctx context.Context, address common.Address, limit, offset int) ([]models.EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	ops, err := x.src.Load(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.EventRecord
	skipped := 0
	for i := len(ops) - 1; i >= 0; i-- {
		evs := ops[i].Events
		for j := len(evs) - 1; j >= 0; j-- {
			if !concerns(evs[j], address) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, evs[j])
			if len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func concerns(ev models.EventRecord, address common.Address) bool {
	if ev.Address == address {
		return true
	}
	depositor, _ := ev.Payload["depositor"].(string)
	return strings.EqualFold(depositor, address.Hex())
}
