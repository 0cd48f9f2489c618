package engine

import (
	"fmt"
	"math/big"
)

// Violation is a broken accounting invariant.
type Violation struct {
	Invariant string `json:"invariant"`
	Detail    string `json:"detail"`
}

// CheckInvariants verifies the solvency and conservation invariants of the
// current state. An empty result means the state is consistent.
func (e *Engine) CheckInvariants() []Violation {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Violation
	fail := func(name, format string, args ...any) {
		out = append(out, Violation{Invariant: name, Detail: fmt.Sprintf(format, args...)})
	}

	active := e.pool.ActiveDeposits()
	sum := new(big.Int)
	for _, d := range active {
		if d.Principal.Sign() <= 0 {
			fail("deposit_principal", "deposit of %s has principal %s", d.Depositor.Hex(), d.Principal)
		}
		sum.Add(sum, d.Principal)
	}
	totals := e.pool.Totals()
	if sum.Cmp(totals.ActivePrincipal) != 0 {
		fail("pool_principal_sum", "active deposits sum to %s, counter is %s", sum, totals.ActivePrincipal)
	}
	if balance := e.pool.Balance(); balance.Cmp(totals.ActivePrincipal) < 0 {
		fail("pool_solvency", "pool holds %s for %s active principal", balance, totals.ActivePrincipal)
	}
	if paid := new(big.Int).Add(totals.RedeemedPrincipal, totals.Rewards); paid.Cmp(totals.Paid) != 0 {
		fail("pool_conservation", "paid %s, redeemed principal plus rewards is %s", totals.Paid, paid)
	}

	claimable := new(big.Int)
	for _, entry := range e.ledger.Entries() {
		claimable.Add(claimable, entry.Amount)
	}
	if total := e.ledger.TotalClaimable(); claimable.Cmp(total) != 0 {
		fail("ledger_claimable_sum", "entries sum to %s, counter is %s", claimable, total)
	}
	if balance := e.token.BalanceOf(e.ledger.Address()); balance.Cmp(claimable) < 0 {
		fail("ledger_solvency", "ledger holds %s for %s claimable", balance, claimable)
	}

	if supply, circulating := e.token.TotalSupply(), e.token.Circulating(); supply.Cmp(circulating) != 0 {
		fail("token_supply", "supply %s, balances sum to %s", supply, circulating)
	}
	return out
}

// StakingWindowClosed reports whether the deposit deadline has passed.
func (e *Engine) StakingWindowClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now() > e.pool.Config().StakingDateEnd
}
