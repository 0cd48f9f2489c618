package events

import "context"

// Event types
const (
	EventDepositAccepted            = "deposit_accepted"
	EventRedeemSettled              = "redeem_settled"
	EventUnauthorizedTokensReturned = "unauthorized_tokens_returned"
	EventDepositCredited            = "deposit_credited"
	EventDepositClaimed             = "deposit_claimed"
	EventConfigUpdated              = "config_updated"
	EventAddressBlacklisted         = "address_blacklisted"
	EventTransfer                   = "transfer"
	EventApproval                   = "approval"
	EventRoleGranted                = "role_granted"
	EventRoleRevoked                = "role_revoked"

	// Emitted by the journal auditor, not by the state machine.
	EventStakingWindowClosed = "staking_window_closed"
	EventInvariantViolation  = "invariant_violation"
)

// StreamStaking is the pub/sub channel committed staking events go to.
const StreamStaking = "events:staking"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// Emitter receives events raised while an operation executes.
type Emitter func(Event)

// Buffer collects events of a single operation until it commits.
type Buffer struct {
	events []Event
}

func (b *Buffer) Emit(e Event) {
	b.events = append(b.events, e)
}

func (b *Buffer) Events() []Event {
	return b.events
}

func (b *Buffer) Reset() {
	b.events = nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
