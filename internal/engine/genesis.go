package engine

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/audt-staking/backend/internal/models"
	"github.com/audt-staking/backend/internal/rbac"
	"github.com/audt-staking/backend/internal/staking"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrGenesisMismatch is returned by Open when the journal was written for a
// different genesis.
var ErrGenesisMismatch = errors.New("journal genesis does not match configuration")

// ErrNotOpen is returned by Submit before Open has completed.
var ErrNotOpen = errors.New("engine is not open")

// Genesis describes the initial deployment. It is the first journal record.
type Genesis struct {
	Owner          common.Address `json:"owner"`
	Symbol         string         `json:"symbol"`
	StakingDateEnd uint64         `json:"staking_date_end"`
	MinimumStake   *big.Int       `json:"minimum_stake"`
	RewardAmount   *big.Int       `json:"reward_amount"`
	RewardSource   string         `json:"reward_source"`
	// OwnerSupply is minted to the owner at deployment.
	OwnerSupply *big.Int `json:"owner_supply,omitempty"`
	// WireLedger points pool payouts at the deposit ledger and makes the pool
	// a ledger controller.
	WireLedger bool `json:"wire_ledger"`
}

func (g Genesis) Validate() error {
	if g.Owner == (common.Address{}) {
		return fmt.Errorf("genesis owner is zero: %w", models.ErrInvalidConfiguration)
	}
	return g.poolConfig().Validate()
}

func (g Genesis) poolConfig() staking.Config {
	return staking.Config{
		StakingDateEnd: g.StakingDateEnd,
		MinimumStake:   g.MinimumStake,
		RewardAmount:   g.RewardAmount,
		RewardSource:   g.RewardSource,
	}
}

// Addresses of the deployed components, derived the way contract creation
// addresses are: from the owner and a creation nonce.
type Addresses struct {
	Token  common.Address `json:"token"`
	Pool   common.Address `json:"pool"`
	Ledger common.Address `json:"ledger"`
}

func DeriveAddresses(owner common.Address) Addresses {
	return Addresses{
		Token:  crypto.CreateAddress(owner, 0),
		Pool:   crypto.CreateAddress(owner, 1),
		Ledger: crypto.CreateAddress(owner, 2),
	}
}

func (e *Engine) deploy(g Genesis) error {
	owner := g.Owner
	if err := e.token.Deploy(owner); err != nil {
		return fmt.Errorf("deploy token: %w", err)
	}
	if err := e.pool.Deploy(owner, g.poolConfig()); err != nil {
		return fmt.Errorf("deploy pool: %w", err)
	}
	if err := e.ledger.Deploy(owner); err != nil {
		return fmt.Errorf("deploy ledger: %w", err)
	}
	if g.RewardSource == models.RewardSourceMint {
		if err := e.token.Roles().GrantRole(owner, rbac.MinterRole, e.pool.Address()); err != nil {
			return err
		}
	}
	if g.WireLedger {
		if err := e.ledger.Roles().GrantRole(owner, rbac.ControllerRole, e.pool.Address()); err != nil {
			return err
		}
		if err := e.pool.SetDepositContract(owner, e.ledger.Address()); err != nil {
			return err
		}
	}
	if g.OwnerSupply != nil && g.OwnerSupply.Sign() > 0 {
		if err := e.token.Mint(owner, owner, g.OwnerSupply); err != nil {
			return fmt.Errorf("mint owner supply: %w", err)
		}
	}
	return nil
}
