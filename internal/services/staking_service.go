package services

import (
	"context"
	"math/big"

	"github.com/audt-staking/backend/internal/custody"
	"github.com/audt-staking/backend/internal/engine"
	"github.com/audt-staking/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// EventLister serves event history.
type EventLister interface {
	ListByAddress(ctx context.Context, address common.Address, limit, offset int) ([]models.EventRecord, error)
}

// StakingService is the application layer over the engine. Every method
// takes the authenticated caller explicitly.
type StakingService struct {
	eng    *engine.Engine
	events EventLister
	log    *zap.Logger
}

func NewStakingService(eng *engine.Engine, events EventLister, log *zap.Logger) *StakingService {
	return &StakingService{eng: eng, events: events, log: log}
}

func (s *StakingService) submit(ctx context.Context, kind string, caller common.Address, args any) (*engine.Receipt, error) {
	r, err := s.eng.Submit(ctx, kind, caller, args)
	if err != nil {
		kindOfErr := models.ErrorKind(err)
		if kindOfErr == "internal" {
			s.log.Error("operation failed",
				zap.String("kind", kind),
				zap.String("caller", caller.Hex()),
				zap.Error(err),
			)
		} else {
			s.log.Debug("operation rejected",
				zap.String("kind", kind),
				zap.String("caller", caller.Hex()),
				zap.String("reason", kindOfErr),
				zap.Error(err),
			)
		}
		return nil, err
	}
	s.log.Info("operation committed",
		zap.Uint64("seq", r.Seq),
		zap.String("kind", kind),
		zap.String("caller", caller.Hex()),
		zap.Int("events", len(r.Events)),
	)
	return r, nil
}

// Staking pool

func (s *StakingService) Stake(ctx context.Context, caller common.Address, amount *big.Int) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpStake, caller, engine.AmountArgs{Amount: amount})
}

func (s *StakingService) Redeem(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpRedeem, caller, nil)
}

func (s *StakingService) UpdateEndDate(ctx context.Context, caller common.Address, end uint64) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpUpdateEndDate, caller, engine.EndDateArgs{StakingDateEnd: end})
}

func (s *StakingService) UpdateMinStakeAmount(ctx context.Context, caller common.Address, minimum *big.Int) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpUpdateMinStakeAmount, caller, engine.AmountArgs{Amount: minimum})
}

func (s *StakingService) BlacklistAddress(ctx context.Context, caller, account common.Address) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpBlacklistAddress, caller, engine.AddressArgs{Address: account})
}

func (s *StakingService) SetDepositContract(ctx context.Context, caller, ledger common.Address) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpSetDepositContract, caller, engine.AddressArgs{Address: ledger})
}

func (s *StakingService) ReturnUnauthorizedTokens(ctx context.Context, caller, recipient common.Address, amount *big.Int) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpReturnUnauthorizedTokens, caller, engine.RecoverArgs{Recipient: recipient, Amount: amount})
}

func (s *StakingService) SetReward(ctx context.Context, caller common.Address, amount *big.Int, source string) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpSetReward, caller, engine.RewardArgs{Amount: amount, Source: source})
}

// Deposit ledger

func (s *StakingService) Claim(ctx context.Context, caller common.Address) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpLedgerClaim, caller, nil)
}

func (s *StakingService) ReceiveTokens(ctx context.Context, caller common.Address, amount *big.Int) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpLedgerReceiveTokens, caller, engine.AmountArgs{Amount: amount})
}

func (s *StakingService) RecoverLedgerTokens(ctx context.Context, caller, recipient common.Address, amount *big.Int) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpLedgerRecoverTokens, caller, engine.RecoverArgs{Recipient: recipient, Amount: amount})
}

// Token

func (s *StakingService) Transfer(ctx context.Context, caller, to common.Address, amount *big.Int) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpTokenTransfer, caller, engine.TransferArgs{To: to, Amount: amount})
}

func (s *StakingService) Approve(ctx context.Context, caller, spender common.Address, amount *big.Int, increase bool) (*engine.Receipt, error) {
	kind := models.OpTokenApprove
	if increase {
		kind = models.OpTokenIncreaseAllowance
	}
	return s.submit(ctx, kind, caller, engine.ApproveArgs{Spender: spender, Amount: amount})
}

func (s *StakingService) Mint(ctx context.Context, caller, to common.Address, amount *big.Int) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpTokenMint, caller, engine.TransferArgs{To: to, Amount: amount})
}

// Roles

func (s *StakingService) GrantRole(ctx context.Context, caller common.Address, target string, role common.Hash, account common.Address) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpGrantRole, caller, engine.RoleArgs{Target: target, Role: role, Account: account})
}

func (s *StakingService) RevokeRole(ctx context.Context, caller common.Address, target string, role common.Hash, account common.Address) (*engine.Receipt, error) {
	return s.submit(ctx, models.OpRevokeRole, caller, engine.RoleArgs{Target: target, Role: role, Account: account})
}

func (s *StakingService) Members(target string, role common.Hash) ([]common.Address, error) {
	return s.eng.Members(target, role)
}

// Reads

func (s *StakingService) Pool() models.PoolSummary {
	return s.eng.Pool()
}

func (s *StakingService) Addresses() engine.Addresses {
	return s.eng.Addresses()
}

func (s *StakingService) DepositOf(id common.Address) (*models.Deposit, bool) {
	return s.eng.DepositOf(id)
}

func (s *StakingService) ActiveDeposits() []*models.Deposit {
	return s.eng.ActiveDeposits()
}

func (s *StakingService) Claimable(id common.Address) *big.Int {
	return s.eng.Claimable(id)
}

func (s *StakingService) LedgerEntries() []custody.Entry {
	return s.eng.LedgerEntries()
}

func (s *StakingService) TokenAccount(id common.Address) engine.TokenAccount {
	return s.eng.TokenAccount(id)
}

func (s *StakingService) TotalSupply() *big.Int {
	return s.eng.TotalSupply()
}

func (s *StakingService) Events(ctx context.Context, address common.Address, limit, offset int) ([]models.EventRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.events.ListByAddress(ctx, address, limit, offset)
}
