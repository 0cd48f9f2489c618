package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLocal(2)
	got := make(chan Event, 8)
	require.NoError(t, l.Subscribe(ctx, StreamStaking, func(e Event) { got <- e }))

	for _, typ := range []string{EventDepositAccepted, EventRedeemSettled, EventDepositClaimed} {
		require.NoError(t, l.Publish(ctx, StreamStaking, Event{Type: typ}))
	}
	require.NoError(t, l.Publish(ctx, "events:other", Event{Type: EventTransfer}))

	for _, want := range []string{EventDepositAccepted, EventRedeemSettled, EventDepositClaimed} {
		select {
		case e := <-got:
			assert.Equal(t, want, e.Type)
		case <-time.After(time.Second):
			t.Fatalf("no %s delivered", want)
		}
	}

	recent, err := l.Recent(ctx, StreamStaking, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2, "history is capped")
	assert.Equal(t, EventDepositClaimed, recent[1].Type)

	recent, err = l.Recent(ctx, StreamStaking, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, EventDepositClaimed, recent[0].Type)
}

func TestBuffer(t *testing.T) {
	var b Buffer
	b.Emit(Event{Type: EventTransfer})
	b.Emit(Event{Type: EventApproval})
	assert.Len(t, b.Events(), 2)
	b.Reset()
	assert.Empty(t, b.Events())
}
