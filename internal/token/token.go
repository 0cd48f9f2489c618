// Package token hosts the fungible asset ledger (AUDT) the staking pool and
// deposit ledger move value through. Minting is gated by MINTER_ROLE.
package token

import (
	"fmt"
	"math/big"

	"github.com/audt-staking/backend/internal/events"
	"github.com/audt-staking/backend/internal/models"
	"github.com/audt-staking/backend/internal/rbac"
	"github.com/audt-staking/backend/internal/state"
	"github.com/ethereum/go-ethereum/common"
)

const ns = "token"

// Ledger implements balances, allowances and role-gated minting.
type Ledger struct {
	st      *state.Store
	address common.Address
	symbol  string
	acl     *rbac.AccessControl
	emit    events.Emitter
}

func New(st *state.Store, address common.Address, symbol string, emit events.Emitter) *Ledger {
	return &Ledger{
		st:      st,
		address: address,
		symbol:  symbol,
		acl:     rbac.New(st, ns, address, emit),
		emit:    emit,
	}
}

// Deploy bootstraps the admin, who also receives MINTER_ROLE.
func (l *Ledger) Deploy(admin common.Address) error {
	l.acl.Bootstrap(admin)
	return l.acl.GrantRole(admin, rbac.MinterRole, admin)
}

func (l *Ledger) Address() common.Address     { return l.address }
func (l *Ledger) Symbol() string              { return l.symbol }
func (l *Ledger) Roles() *rbac.AccessControl { return l.acl }

func (l *Ledger) BalanceOf(id common.Address) *big.Int {
	return l.st.Big(state.AddrKey(ns, "balance", id))
}

func (l *Ledger) TotalSupply() *big.Int {
	return l.st.Big(state.Key(ns, "supply"))
}

// Circulating sums every balance. It always equals TotalSupply.
func (l *Ledger) Circulating() *big.Int {
	sum := new(big.Int)
	for _, k := range l.st.Keys(state.Key(ns, "balance", "")) {
		sum.Add(sum, l.st.Big(k))
	}
	return sum
}

func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	return l.st.Big(l.allowanceKey(owner, spender))
}

// Mint creates amount new tokens for to. The caller must hold MINTER_ROLE.
func (l *Ledger) Mint(caller, to common.Address, amount *big.Int) error {
	if err := l.acl.Require(rbac.MinterRole, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("mint: %w", models.ErrInvalidAmount)
	}
	l.st.SetBig(state.Key(ns, "supply"), new(big.Int).Add(l.TotalSupply(), amount))
	l.st.SetBig(state.AddrKey(ns, "balance", to), new(big.Int).Add(l.BalanceOf(to), amount))
	l.emitTransfer(common.Address{}, to, amount)
	return nil
}

// Transfer moves amount from the caller's balance to to.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	l.emitTransfer(from, to, amount)
	return nil
}

// TransferFrom moves amount from owner to to, spending the allowance that
// owner granted spender.
func (l *Ledger) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	allowance := l.Allowance(owner, spender)
	if amount == nil || allowance.Cmp(amount) < 0 {
		return fmt.Errorf("allowance %s of %s for %s below %s: %w",
			allowance, owner.Hex(), spender.Hex(), amount, models.ErrTransferFailed)
	}
	if err := l.move(owner, to, amount); err != nil {
		return err
	}
	l.st.SetBig(l.allowanceKey(owner, spender), new(big.Int).Sub(allowance, amount))
	l.emitTransfer(owner, to, amount)
	return nil
}

// Approve sets the allowance of spender over owner's tokens.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("approve: %w", models.ErrInvalidAmount)
	}
	l.st.SetBig(l.allowanceKey(owner, spender), amount)
	l.emitApproval(owner, spender, amount)
	return nil
}

func (l *Ledger) IncreaseAllowance(owner, spender common.Address, added *big.Int) error {
	if added == nil || added.Sign() <= 0 {
		return fmt.Errorf("increase allowance: %w", models.ErrInvalidAmount)
	}
	next := new(big.Int).Add(l.Allowance(owner, spender), added)
	l.st.SetBig(l.allowanceKey(owner, spender), next)
	l.emitApproval(owner, spender, next)
	return nil
}

func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("transfer: %w: %w", models.ErrInvalidAmount, models.ErrTransferFailed)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer to zero address: %w", models.ErrTransferFailed)
	}
	balance := l.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("balance %s of %s below %s: %w", balance, from.Hex(), amount, models.ErrTransferFailed)
	}
	l.st.SetBig(state.AddrKey(ns, "balance", from), new(big.Int).Sub(balance, amount))
	l.st.SetBig(state.AddrKey(ns, "balance", to), new(big.Int).Add(l.BalanceOf(to), amount))
	return nil
}

func (l *Ledger) allowanceKey(owner, spender common.Address) string {
	return state.Key(ns, "allowance", state.AddrPart(owner), state.AddrPart(spender))
}

func (l *Ledger) emitTransfer(from, to common.Address, amount *big.Int) {
	l.emit(events.Event{
		Type: events.EventTransfer,
		Payload: map[string]any{
			"token":  l.address.Hex(),
			"from":   from.Hex(),
			"to":     to.Hex(),
			"amount": amount.String(),
		},
	})
}

func (l *Ledger) emitApproval(owner, spender common.Address, amount *big.Int) {
	l.emit(events.Event{
		Type: events.EventApproval,
		Payload: map[string]any{
			"token":   l.address.Hex(),
			"owner":   owner.Hex(),
			"spender": spender.Hex(),
			"amount":  amount.String(),
		},
	})
}
