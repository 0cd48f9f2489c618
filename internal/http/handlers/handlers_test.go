package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/audt-staking/backend/internal/engine"
	"github.com/audt-staking/backend/internal/events"
	"github.com/audt-staking/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrUnauthorized, fiber.StatusForbidden},
		{models.ErrBlacklisted, fiber.StatusForbidden},
		{models.ErrDeadlinePassed, fiber.StatusConflict},
		{models.ErrDuplicateDeposit, fiber.StatusConflict},
		{models.ErrNoActiveDeposit, fiber.StatusConflict},
		{models.ErrNothingToClaim, fiber.StatusConflict},
		{models.ErrInsufficientSpareBalance, fiber.StatusConflict},
		{models.ErrTransferFailed, fiber.StatusConflict},
		{models.ErrBelowMinimum, fiber.StatusUnprocessableEntity},
		{models.ErrInvalidConfiguration, fiber.StatusUnprocessableEntity},
		{models.ErrInvalidAmount, fiber.StatusUnprocessableEntity},
		{models.ErrUnknownOp, fiber.StatusBadRequest},
		{engine.ErrNotOpen, fiber.StatusServiceUnavailable},
		{errors.New("disk full"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(fmt.Errorf("op: %w", tt.err)))
		})
	}
}

func TestConcernsAddress(t *testing.T) {
	alice := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ev := events.Event{Type: events.EventTransfer, Payload: map[string]any{
		"from": "0x00000000000000000000000000000000000000AA",
		"to":   "0x00000000000000000000000000000000000000bb",
	}}
	assert.True(t, concernsAddress(ev, alice))
	assert.False(t, concernsAddress(ev, common.HexToAddress("0xcc")))
	assert.False(t, concernsAddress(events.Event{Type: events.EventConfigUpdated}, alice))
}

func TestParseHelpers(t *testing.T) {
	_, ok := parseAddress(" 0x00000000000000000000000000000000000000aa ")
	assert.True(t, ok)
	_, ok = parseAddress("0x1234")
	assert.False(t, ok)

	v, ok := parseAmount("1000")
	assert.True(t, ok)
	assert.Equal(t, "1000", v.String())
	for _, s := range []string{"", "-1", "1.5", "1e18"} {
		_, ok := parseAmount(s)
		assert.False(t, ok, s)
	}
}

type recordingConn struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingConn) WriteMessage(_ int, data []byte) error {
	var ev events.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	r.mu.Lock()
	r.sent = append(r.sent, eventID(ev))
	r.mu.Unlock()
	return nil
}

func stakingEvent(id string) events.Event {
	return events.Event{Type: events.EventDepositAccepted, Payload: map[string]any{"event_id": id}}
}

func TestReplayDoesNotLoseLiveEvents(t *testing.T) {
	ctx := context.Background()
	history := events.NewLocal(10)
	require.NoError(t, history.Publish(ctx, events.StreamStaking, stakingEvent("e1")))
	require.NoError(t, history.Publish(ctx, events.StreamStaking, stakingEvent("e2")))

	hub := NewWSHub(nil, history, history, zap.NewNop())
	alice := common.HexToAddress("0xaa")
	conn := &recordingConn{}
	client := newWSClient(conn, false)
	hub.register(alice, client)

	// committed while the replay is being prepared
	hub.broadcast(stakingEvent("e2"))
	hub.broadcast(stakingEvent("e3"))
	assert.Empty(t, conn.sent, "live events wait for the replay")

	hub.replay(client, alice, "10")
	assert.Equal(t, []string{"e1", "e2", "e3"}, conn.sent)

	hub.broadcast(stakingEvent("e4"))
	hub.broadcast(stakingEvent("e1"))
	assert.Equal(t, []string{"e1", "e2", "e3", "e4"}, conn.sent)

	hub.unregister(alice, client)
	hub.broadcast(stakingEvent("e5"))
	assert.Len(t, conn.sent, 4)
}

func TestNoReplayReleasesLiveEvents(t *testing.T) {
	hub := NewWSHub(nil, events.NewLocal(10), nil, zap.NewNop())
	alice := common.HexToAddress("0xaa")
	conn := &recordingConn{}
	client := newWSClient(conn, true)
	hub.register(alice, client)
	hub.replay(client, alice, "")

	hub.broadcast(events.Event{Type: events.EventTransfer, Payload: map[string]any{"event_id": "t1", "to": alice.Hex()}})
	hub.broadcast(events.Event{Type: events.EventTransfer, Payload: map[string]any{"event_id": "t2", "to": "0x00000000000000000000000000000000000000bb"}})
	assert.Equal(t, []string{"t1"}, conn.sent)
}
