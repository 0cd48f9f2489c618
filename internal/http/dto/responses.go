package dto

import (
	"math/big"
	"time"

	"github.com/audt-staking/backend/internal/custody"
	"github.com/audt-staking/backend/internal/engine"
	"github.com/audt-staking/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

type AuthResponse struct {
	Token     string    `json:"token"`
	Address   string    `json:"address"`
	ExpiresAt time.Time `json:"expires_at"`
}

type NonceResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type DepositResponse struct {
	Depositor  string `json:"depositor"`
	Principal  string `json:"principal"`
	Status     string `json:"status"`
	StakedAt   uint64 `json:"staked_at"`
	RedeemedAt uint64 `json:"redeemed_at,omitempty"`
	Reward     string `json:"reward,omitempty"`
	Payout     string `json:"payout,omitempty"`
}

func NewDepositResponse(d *models.Deposit) DepositResponse {
	out := DepositResponse{
		Depositor:  d.Depositor.Hex(),
		Principal:  amount(d.Principal),
		Status:     d.Status,
		StakedAt:   d.StakedAt,
		RedeemedAt: d.RedeemedAt,
	}
	if d.Status == models.DepositStatusRedeemed {
		out.Reward = amount(d.Reward)
		out.Payout = amount(d.Payout)
	}
	return out
}

type PoolResponse struct {
	Address              string   `json:"address"`
	Token                string   `json:"token"`
	Ledger               string   `json:"ledger"`
	StakingDateEnd       uint64   `json:"staking_date_end"`
	MinimumStake         string   `json:"minimum_stake"`
	RewardAmount         string   `json:"reward_amount"`
	RewardSource         string   `json:"reward_source"`
	DepositContract      string   `json:"deposit_contract,omitempty"`
	Blacklist            []string `json:"blacklist"`
	Balance              string   `json:"balance"`
	TotalActivePrincipal string   `json:"total_active_principal"`
	SpareBalance         string   `json:"spare_balance"`
	ActiveDeposits       int      `json:"active_deposits"`
}

func NewPoolResponse(s models.PoolSummary, addrs engine.Addresses) PoolResponse {
	out := PoolResponse{
		Address:              s.Address.Hex(),
		Token:                s.Token.Hex(),
		Ledger:               addrs.Ledger.Hex(),
		StakingDateEnd:       s.Config.StakingDateEnd,
		MinimumStake:         amount(s.Config.MinimumStake),
		RewardAmount:         amount(s.Config.RewardAmount),
		RewardSource:         s.Config.RewardSource,
		Blacklist:            hexes(s.Config.Blacklist),
		Balance:              amount(s.Balance),
		TotalActivePrincipal: amount(s.TotalActivePrincipal),
		SpareBalance:         amount(s.SpareBalance),
		ActiveDeposits:       s.ActiveDeposits,
	}
	if s.Config.DepositContract != nil {
		out.DepositContract = s.Config.DepositContract.Hex()
	}
	return out
}

type LedgerEntryResponse struct {
	Depositor string `json:"depositor"`
	Claimable string `json:"claimable"`
}

func NewLedgerEntries(entries []custody.Entry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerEntryResponse{Depositor: e.Depositor.Hex(), Claimable: amount(e.Amount)})
	}
	return out
}

type TokenAccountResponse struct {
	Address         string `json:"address"`
	Balance         string `json:"balance"`
	PoolAllowance   string `json:"pool_allowance"`
	LedgerAllowance string `json:"ledger_allowance"`
}

func NewTokenAccountResponse(a engine.TokenAccount) TokenAccountResponse {
	return TokenAccountResponse{
		Address:         a.Address.Hex(),
		Balance:         amount(a.Balance),
		PoolAllowance:   amount(a.PoolAllowance),
		LedgerAllowance: amount(a.LedgerAllowance),
	}
}

type EventResponse struct {
	ID        string         `json:"id"`
	Seq       uint64         `json:"seq"`
	Type      string         `json:"type"`
	Address   string         `json:"address"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

func NewEventResponses(recs []models.EventRecord) []EventResponse {
	out := make([]EventResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, EventResponse{
			ID:        r.ID.String(),
			Seq:       r.Seq,
			Type:      r.Type,
			Address:   r.Address.Hex(),
			Payload:   r.Payload,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

type ReceiptResponse struct {
	Seq       uint64           `json:"seq"`
	Kind      string           `json:"kind"`
	Timestamp uint64           `json:"timestamp"`
	Events    []EventResponse  `json:"events"`
	Deposit   *DepositResponse `json:"deposit,omitempty"`
	Amount    string           `json:"amount,omitempty"`
}

func NewReceiptResponse(r *engine.Receipt) ReceiptResponse {
	out := ReceiptResponse{
		Seq:       r.Seq,
		Kind:      r.Kind,
		Timestamp: r.Timestamp,
		Events:    NewEventResponses(r.Events),
	}
	switch v := r.Result.(type) {
	case *models.Deposit:
		if v != nil {
			d := NewDepositResponse(v)
			out.Deposit = &d
		}
	case *big.Int:
		if v != nil {
			out.Amount = v.String()
		}
	}
	return out
}

func hexes(addrs []common.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Hex())
	}
	return out
}
