package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Deposit statuses
const (
	DepositStatusActive   = "active"
	DepositStatusRedeemed = "redeemed"
)

// Valid state transitions: from -> []to. A redeemed deposit is final and keeps
// its depositor from staking again.
var ValidDepositTransitions = map[string][]string{
	DepositStatusActive:   {DepositStatusRedeemed},
	DepositStatusRedeemed: {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidDepositTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Deposit is the pool's record of one depositor's stake. Principal is set once
// at creation; values stored in state are never mutated in place.
type Deposit struct {
	Depositor  common.Address `json:"depositor"`
	Principal  *big.Int       `json:"principal"`
	Status     string         `json:"status"`
	StakedAt   uint64         `json:"staked_at"`
	RedeemedAt uint64         `json:"redeemed_at,omitempty"`
	Reward     *big.Int       `json:"reward,omitempty"`
	Payout     *big.Int       `json:"payout,omitempty"`
}

func (d *Deposit) IsActive() bool {
	return d != nil && d.Status == DepositStatusActive
}

// Reward sources
const (
	RewardSourceMint    = "mint"    // pool mints the reward through MINTER_ROLE
	RewardSourceReserve = "reserve" // reward is paid out of the pool's spare balance
)

// PoolConfig is the administrator-controlled configuration of a staking pool.
type PoolConfig struct {
	StakingDateEnd  uint64           `json:"staking_date_end"`
	MinimumStake    *big.Int         `json:"minimum_stake"`
	RewardAmount    *big.Int         `json:"reward_amount"`
	RewardSource    string           `json:"reward_source"`
	DepositContract *common.Address  `json:"deposit_contract,omitempty"`
	Blacklist       []common.Address `json:"blacklist"`
}

// PoolSummary is the public read model of the pool.
type PoolSummary struct {
	Address              common.Address `json:"address"`
	Token                common.Address `json:"token"`
	Config               PoolConfig     `json:"config"`
	Balance              *big.Int       `json:"balance"`
	TotalActivePrincipal *big.Int       `json:"total_active_principal"`
	SpareBalance         *big.Int       `json:"spare_balance"`
	ActiveDeposits       int            `json:"active_deposits"`
}
