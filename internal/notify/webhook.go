// Package notify forwards selected staking events to an HTTP webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/audt-staking/backend/internal/events"
	"go.uber.org/zap"
)

// DefaultEvents are forwarded when no explicit list is configured.
var DefaultEvents = []string{
	events.EventRedeemSettled,
	events.EventDepositCredited,
	events.EventStakingWindowClosed,
	events.EventInvariantViolation,
}

// Notification is the webhook request body.
type Notification struct {
	Type    string         `json:"type"`
	Text    string         `json:"text"`
	Payload map[string]any `json:"payload"`
}

type Forwarder struct {
	url    string
	types  map[string]bool
	client *http.Client
	log    *zap.Logger
}

func NewForwarder(url string, types []string, log *zap.Logger) *Forwarder {
	if len(types) == 0 {
		types = DefaultEvents
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[strings.TrimSpace(t)] = true
	}
	return &Forwarder{
		url:    strings.TrimRight(url, "/"),
		types:  set,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Handle forwards event when its type is selected. Failures are logged.
func (f *Forwarder) Handle(event events.Event) {
	if !f.types[event.Type] {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := f.Send(ctx, event); err != nil {
		f.log.Warn("failed to forward notification", zap.String("type", event.Type), zap.Error(err))
		return
	}
	f.log.Info("notification forwarded", zap.String("type", event.Type))
}

func (f *Forwarder) Send(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(Notification{Type: event.Type, Text: Text(event), Payload: event.Payload})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Text renders a one-line human readable summary of event.
func Text(event events.Event) string {
	p := event.Payload
	switch event.Type {
	case events.EventRedeemSettled:
		return fmt.Sprintf("Deposit of %v redeemed: paid %v (reward %v) to %v", p["depositor"], p["payout"], p["reward"], p["destination"])
	case events.EventDepositCredited:
		return fmt.Sprintf("%v credited with %v, ready to claim", p["depositor"], p["amount"])
	case events.EventStakingWindowClosed:
		return fmt.Sprintf("Staking window closed with %v active deposits", p["active_deposits"])
	case events.EventInvariantViolation:
		return fmt.Sprintf("Invariant %v violated at seq %v: %v", p["invariant"], p["seq"], p["detail"])
	}
	return fmt.Sprintf("Event: %s", event.Type)
}
