package engine

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/audt-staking/backend/internal/models"
	"github.com/audt-staking/backend/internal/rbac"
	"github.com/ethereum/go-ethereum/common"
)

// Operation arguments as journaled.

type AmountArgs struct {
	Amount *big.Int `json:"amount"`
}

type TransferArgs struct {
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type ApproveArgs struct {
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
}

type EndDateArgs struct {
	StakingDateEnd uint64 `json:"staking_date_end"`
}

type AddressArgs struct {
	Address common.Address `json:"address"`
}

type RecoverArgs struct {
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

type RewardArgs struct {
	Amount *big.Int `json:"amount"`
	Source string   `json:"source,omitempty"`
}

// Role targets name the component whose role set is changed.
const (
	TargetToken  = "token"
	TargetPool   = "pool"
	TargetLedger = "ledger"
)

type RoleArgs struct {
	Target  string         `json:"target"`
	Role    common.Hash    `json:"role"`
	Account common.Address `json:"account"`
}

func decode[T any](op models.Operation) (T, error) {
	var args T
	if len(op.Args) == 0 {
		return args, fmt.Errorf("%s: missing arguments: %w", op.Kind, models.ErrInvalidConfiguration)
	}
	if err := json.Unmarshal(op.Args, &args); err != nil {
		return args, fmt.Errorf("%s: decode arguments: %w", op.Kind, err)
	}
	return args, nil
}

// dispatch executes op against the components. It must be deterministic in
// (state, op) so that replay reproduces the journaled run.
func (e *Engine) dispatch(op models.Operation) (any, error) {
	caller, now := op.Caller, op.Timestamp

	switch op.Kind {
	case models.OpGenesis:
		g, err := decode[Genesis](op)
		if err != nil {
			return nil, err
		}
		return nil, e.deploy(g)

	case models.OpTokenMint:
		a, err := decode[TransferArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.token.Mint(caller, a.To, a.Amount)
	case models.OpTokenTransfer:
		a, err := decode[TransferArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.token.Transfer(caller, a.To, a.Amount)
	case models.OpTokenApprove:
		a, err := decode[ApproveArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.token.Approve(caller, a.Spender, a.Amount)
	case models.OpTokenIncreaseAllowance:
		a, err := decode[ApproveArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.token.IncreaseAllowance(caller, a.Spender, a.Amount)

	case models.OpStake:
		a, err := decode[AmountArgs](op)
		if err != nil {
			return nil, err
		}
		return e.pool.Stake(caller, a.Amount, now)
	case models.OpRedeem:
		return e.pool.Redeem(caller, now)
	case models.OpUpdateEndDate:
		a, err := decode[EndDateArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.pool.UpdateEndDate(caller, a.StakingDateEnd, now)
	case models.OpUpdateMinStakeAmount:
		a, err := decode[AmountArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.pool.UpdateMinStakeAmount(caller, a.Amount)
	case models.OpBlacklistAddress:
		a, err := decode[AddressArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.pool.BlacklistAddress(caller, a.Address)
	case models.OpSetDepositContract:
		a, err := decode[AddressArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.pool.SetDepositContract(caller, a.Address)
	case models.OpReturnUnauthorizedTokens:
		a, err := decode[RecoverArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.pool.ReturnUnauthorizedTokens(caller, a.Recipient, a.Amount)
	case models.OpSetReward:
		a, err := decode[RewardArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.pool.SetReward(caller, a.Amount, a.Source)

	case models.OpLedgerReceiveTokens:
		a, err := decode[AmountArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.ledger.ReceiveTokens(caller, a.Amount)
	case models.OpLedgerClaim:
		return e.ledger.Redeem(caller)
	case models.OpLedgerRecoverTokens:
		a, err := decode[RecoverArgs](op)
		if err != nil {
			return nil, err
		}
		return nil, e.ledger.RecoverTokens(caller, a.Recipient, a.Amount)

	case models.OpGrantRole, models.OpRevokeRole:
		a, err := decode[RoleArgs](op)
		if err != nil {
			return nil, err
		}
		acl, err := e.roles(a.Target)
		if err != nil {
			return nil, err
		}
		if op.Kind == models.OpGrantRole {
			return nil, acl.GrantRole(caller, a.Role, a.Account)
		}
		return nil, acl.RevokeRole(caller, a.Role, a.Account)
	}
	return nil, fmt.Errorf("%q: %w", op.Kind, models.ErrUnknownOp)
}

func (e *Engine) roles(target string) (*rbac.AccessControl, error) {
	switch target {
	case TargetToken:
		return e.token.Roles(), nil
	case TargetPool:
		return e.pool.Roles(), nil
	case TargetLedger:
		return e.ledger.Roles(), nil
	}
	return nil, fmt.Errorf("unknown role target %q: %w", target, models.ErrInvalidConfiguration)
}
