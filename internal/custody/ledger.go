// Package custody implements the deposit ledger that holds redeemed stake on
// behalf of depositors until they claim it.
package custody

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/audt-staking/backend/internal/events"
	"github.com/audt-staking/backend/internal/models"
	"github.com/audt-staking/backend/internal/rbac"
	"github.com/audt-staking/backend/internal/state"
	"github.com/ethereum/go-ethereum/common"
)

const ns = "ledger"

// TokenLedger is the part of the asset ledger custody needs.
type TokenLedger interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, owner, to common.Address, amount *big.Int) error
	BalanceOf(id common.Address) *big.Int
}

// Entry is one depositor's claimable balance.
type Entry struct {
	Depositor common.Address `json:"depositor"`
	Amount    *big.Int       `json:"amount"`
}

type Ledger struct {
	st      *state.Store
	address common.Address
	token   TokenLedger
	acl     *rbac.AccessControl
	emit    events.Emitter
}

func New(st *state.Store, address common.Address, token TokenLedger, emit events.Emitter) *Ledger {
	return &Ledger{
		st:      st,
		address: address,
		token:   token,
		acl:     rbac.New(st, ns, address, emit),
		emit:    emit,
	}
}

// Deploy makes admin the default admin and first controller.
func (l *Ledger) Deploy(admin common.Address) error {
	l.acl.Bootstrap(admin)
	return l.acl.GrantRole(admin, rbac.ControllerRole, admin)
}

func (l *Ledger) Address() common.Address     { return l.address }
func (l *Ledger) Roles() *rbac.AccessControl { return l.acl }

// ReturnDepositAmount returns the amount depositor can currently claim.
func (l *Ledger) ReturnDepositAmount(depositor common.Address) *big.Int {
	return l.st.Big(state.AddrKey(ns, "claimable", depositor))
}

func (l *Ledger) TotalClaimable() *big.Int {
	return l.st.Big(state.Key(ns, "total_claimable"))
}

// SpareBalance is custodied value not owed to any depositor.
func (l *Ledger) SpareBalance() *big.Int {
	spare := new(big.Int).Sub(l.token.BalanceOf(l.address), l.TotalClaimable())
	if spare.Sign() < 0 {
		return new(big.Int)
	}
	return spare
}

// CreditDeposit records amount as claimable by depositor. The tokens must
// already be in custody; the caller must be a controller.
func (l *Ledger) CreditDeposit(caller, depositor common.Address, amount *big.Int) error {
	if err := l.acl.Require(rbac.ControllerRole, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("credit: %w", models.ErrInvalidAmount)
	}
	if spare := l.SpareBalance(); spare.Cmp(amount) < 0 {
		return fmt.Errorf("credit %s with %s in custody: %w", amount, spare, models.ErrInsufficientSpareBalance)
	}
	l.credit(depositor, amount)
	l.emit(events.Event{
		Type: events.EventDepositCredited,
		Payload: map[string]any{
			"ledger":    l.address.Hex(),
			"depositor": depositor.Hex(),
			"amount":    amount.String(),
			"credited":  l.ReturnDepositAmount(depositor).String(),
			"sender":    caller.Hex(),
		},
	})
	return nil
}

// ReceiveTokens pulls amount from the calling controller into custody and
// credits it back to that controller.
func (l *Ledger) ReceiveTokens(caller common.Address, amount *big.Int) error {
	if err := l.acl.Require(rbac.ControllerRole, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("receive tokens: %w", models.ErrInvalidAmount)
	}
	if err := l.token.TransferFrom(l.address, caller, l.address, amount); err != nil {
		return fmt.Errorf("receive tokens: %w", err)
	}
	l.credit(caller, amount)
	l.emit(events.Event{
		Type: events.EventDepositCredited,
		Payload: map[string]any{
			"ledger":    l.address.Hex(),
			"depositor": caller.Hex(),
			"amount":    amount.String(),
			"credited":  l.ReturnDepositAmount(caller).String(),
			"sender":    caller.Hex(),
		},
	})
	return nil
}

// Redeem pays the caller's full claimable balance and zeroes the entry.
func (l *Ledger) Redeem(caller common.Address) (*big.Int, error) {
	amount := l.ReturnDepositAmount(caller)
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("claim by %s: %w", caller.Hex(), models.ErrNothingToClaim)
	}
	if err := l.token.Transfer(l.address, caller, amount); err != nil {
		return nil, fmt.Errorf("claim by %s: %w", caller.Hex(), err)
	}
	l.st.SetBig(state.AddrKey(ns, "claimable", caller), nil)
	l.st.SetBig(state.Key(ns, "total_claimable"), new(big.Int).Sub(l.TotalClaimable(), amount))
	l.emit(events.Event{
		Type: events.EventDepositClaimed,
		Payload: map[string]any{
			"ledger":    l.address.Hex(),
			"depositor": caller.Hex(),
			"amount":    amount.String(),
		},
	})
	return amount, nil
}

// RecoverTokens returns tokens sent to the ledger by mistake. Only value not
// owed to depositors can be recovered.
func (l *Ledger) RecoverTokens(caller, recipient common.Address, amount *big.Int) error {
	if err := l.acl.Require(rbac.ControllerRole, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("recover tokens: %w", models.ErrInvalidAmount)
	}
	if spare := l.SpareBalance(); spare.Cmp(amount) < 0 {
		return fmt.Errorf("recover %s with %s spare: %w", amount, spare, models.ErrInsufficientSpareBalance)
	}
	if err := l.token.Transfer(l.address, recipient, amount); err != nil {
		return fmt.Errorf("recover tokens: %w", err)
	}
	l.emit(events.Event{
		Type: events.EventUnauthorizedTokensReturned,
		Payload: map[string]any{
			"contract":  l.address.Hex(),
			"recipient": recipient.Hex(),
			"amount":    amount.String(),
		},
	})
	return nil
}

// Entries lists every non-zero claimable balance in address order.
func (l *Ledger) Entries() []Entry {
	prefix := state.Key(ns, "claimable", "")
	keys := l.st.Keys(prefix)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{
			Depositor: common.HexToAddress(strings.TrimPrefix(k, prefix)),
			Amount:    l.st.Big(k),
		})
	}
	return out
}

func (l *Ledger) credit(depositor common.Address, amount *big.Int) {
	key := state.AddrKey(ns, "claimable", depositor)
	l.st.SetBig(key, new(big.Int).Add(l.st.Big(key), amount))
	l.st.SetBig(state.Key(ns, "total_claimable"), new(big.Int).Add(l.TotalClaimable(), amount))
}
