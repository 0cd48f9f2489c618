// Package staking implements the time-bounded staking pool: deposits are
// admitted until the staking end date, and redemptions at or after it carry
// the configured reward.
package staking

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

const ns = "pool"

// TokenLedger is the asset ledger as seen by the pool.
type TokenLedger interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, owner, to common.Address, amount *big.Int) error
	BalanceOf(id common.Address) *big.Int
	Mint(caller, to common.Address, amount *big.Int) error
}

// DepositLedger receives redeemed payouts on behalf of depositors.
type DepositLedger interface {
	Address() common.Address
	CreditDeposit(caller, depositor common.Address, amount *big.Int) error
}

// LedgerResolver maps a configured deposit contract address to its ledger.
type LedgerResolver func(addr common.Address) (DepositLedger, bool)

// Config is the pool's construction-time configuration.
type Config struct {
	StakingDateEnd uint64
	MinimumStake   *big.Int
	RewardAmount   *big.Int
	RewardSource   string
}

func (c Config) Validate() error {
	if c.StakingDateEnd == 0 {
		return fmt.Errorf("staking end date is zero: %w", models.ErrInvalidConfiguration)
	}
	if c.MinimumStake == nil || c.MinimumStake.Sign() <= 0 {
		return fmt.Errorf("minimum stake must be positive: %w", models.ErrInvalidConfiguration)
	}
	if c.RewardAmount != nil && c.RewardAmount.Sign() < 0 {
		return fmt.Errorf("reward is negative: %w", models.ErrInvalidConfiguration)
	}
	switch c.RewardSource {
	case models.RewardSourceMint, models.RewardSourceReserve:
	default:
		return fmt.Errorf("unknown reward source %q: %w", c.RewardSource, models.ErrInvalidConfiguration)
	}
	return nil
}

// Pool is the staking state machine. It keeps one deposit record per
// depositor and all of its configuration in the shared state store.
type Pool struct {
	st      *state.Store
	address common.Address
	token   TokenLedger
	resolve LedgerResolver
	acl     *rbac.AccessControl
	emit    events.Emitter
}

func New(st *state.Store, address common.Address, token TokenLedger, resolve LedgerResolver, emit events.Emitter) *Pool {
	return &Pool{
		st:      st,
		address: address,
		token:   token,
		resolve: resolve,
		acl:     rbac.New(st, ns, address, emit),
		emit:    emit,
	}
}

// Deploy stores the initial configuration and makes admin the pool
// administrator. A staking end date in the past is allowed; the pool then
// simply rejects deposits.
func (p *Pool) Deploy(admin common.Address, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.acl.Bootstrap(admin)
	if err := p.acl.GrantRole(admin, rbac.ControllerRole, admin); err != nil {
		return err
	}
	p.putConfig(models.PoolConfig{
		StakingDateEnd: cfg.StakingDateEnd,
		MinimumStake:   new(big.Int).Set(cfg.MinimumStake),
		RewardAmount:   models.AmountOrZero(cfg.RewardAmount),
		RewardSource:   cfg.RewardSource,
	})
	return nil
}

func (p *Pool) Address() common.Address     { return p.address }
func (p *Pool) Roles() *rbac.AccessControl { return p.acl }

// Stake admits a deposit of amount from caller. The caller must have
// approved the pool for at least amount on the token ledger.
func (p *Pool) Stake(caller common.Address, amount *big.Int, now uint64) (*models.Deposit, error) {
	cfg := p.config()
	if now > cfg.StakingDateEnd {
		return nil, fmt.Errorf("stake at %d after %d: %w", now, cfg.StakingDateEnd, models.ErrDeadlinePassed)
	}
	if amount == nil || amount.Cmp(cfg.MinimumStake) < 0 {
		return nil, fmt.Errorf("stake %s below %s: %w", amount, cfg.MinimumStake, models.ErrBelowMinimum)
	}
	if p.IsBlacklisted(caller) {
		return nil, fmt.Errorf("stake by %s: %w", caller.Hex(), models.ErrBlacklisted)
	}
	if d, ok := p.DepositOf(caller); ok {
		return nil, fmt.Errorf("stake by %s, already %s: %w", caller.Hex(), d.Status, models.ErrDuplicateDeposit)
	}

	if err := p.token.TransferFrom(p.address, caller, p.address, amount); err != nil {
		return nil, fmt.Errorf("stake by %s: %w", caller.Hex(), err)
	}

	d := &models.Deposit{
		Depositor: caller,
		Principal: new(big.Int).Set(amount),
		Status:    models.DepositStatusActive,
		StakedAt:  now,
	}
	p.putDeposit(d)
	p.addCounter("total_active_principal", amount)
	p.emit(events.Event{
		Type: events.EventDepositAccepted,
		Payload: map[string]any{
			"pool":      p.address.Hex(),
			"depositor": caller.Hex(),
			"amount":    amount.String(),
			"staked_at": now,
		},
	})
	return d, nil
}

// Redeem settles the caller's active deposit. Redemption before the staking
// end date returns the principal only.
func (p *Pool) Redeem(caller common.Address, now uint64) (*models.Deposit, error) {
	d, ok := p.DepositOf(caller)
	if !ok || !models.IsValidTransition(d.Status, models.DepositStatusRedeemed) {
		return nil, fmt.Errorf("redeem by %s: %w", caller.Hex(), models.ErrNoActiveDeposit)
	}
	cfg := p.config()

	reward := new(big.Int)
	rewarded := now >= cfg.StakingDateEnd
	if rewarded {
		reward.Set(cfg.RewardAmount)
	}
	payout := new(big.Int).Add(d.Principal, reward)

	var ledger DepositLedger
	if cfg.DepositContract != nil {
		l, ok := p.resolve(*cfg.DepositContract)
		if !ok {
			return nil, fmt.Errorf("deposit contract %s is unknown: %w", cfg.DepositContract.Hex(), models.ErrInvalidConfiguration)
		}
		ledger = l
	}
	if reward.Sign() > 0 && cfg.RewardSource == models.RewardSourceReserve {
		if spare := p.SpareBalance(); spare.Cmp(reward) < 0 {
			return nil, fmt.Errorf("reward %s with %s in reserve: %w", reward, spare, models.ErrInsufficientSpareBalance)
		}
	}

	cp := p.st.Checkpoint()
	destination, err := p.settle(caller, payout, reward, cfg.RewardSource, ledger)
	if err != nil {
		p.st.RevertTo(cp)
		return nil, fmt.Errorf("redeem by %s: %w", caller.Hex(), err)
	}

	settled := &models.Deposit{
		Depositor:  d.Depositor,
		Principal:  new(big.Int).Set(d.Principal),
		Status:     models.DepositStatusRedeemed,
		StakedAt:   d.StakedAt,
		RedeemedAt: now,
		Reward:     reward,
		Payout:     payout,
	}
	p.putDeposit(settled)
	p.subCounter("total_active_principal", d.Principal)
	p.addCounter("total_redeemed_principal", d.Principal)
	p.addCounter("total_rewards", reward)
	p.addCounter("total_paid", payout)
	p.emit(events.Event{
		Type: events.EventRedeemSettled,
		Payload: map[string]any{
			"pool":        p.address.Hex(),
			"depositor":   caller.Hex(),
			"principal":   d.Principal.String(),
			"reward":      reward.String(),
			"rewarded":    rewarded,
			"payout":      payout.String(),
			"destination": destination.Hex(),
		},
	})
	return settled, nil
}

// settle performs the token movements of a redemption and returns where the
// payout went.
func (p *Pool) settle(depositor common.Address, payout, reward *big.Int, source string, ledger DepositLedger) (common.Address, error) {
	if reward.Sign() > 0 && source == models.RewardSourceMint {
		if err := p.token.Mint(p.address, p.address, reward); err != nil {
			return common.Address{}, fmt.Errorf("mint reward: %w", err)
		}
	}
	if ledger == nil {
		if err := p.token.Transfer(p.address, depositor, payout); err != nil {
			return common.Address{}, err
		}
		return depositor, nil
	}
	if err := p.token.Transfer(p.address, ledger.Address(), payout); err != nil {
		return common.Address{}, err
	}
	if err := ledger.CreditDeposit(p.address, depositor, payout); err != nil {
		return common.Address{}, fmt.Errorf("credit deposit ledger: %w", err)
	}
	return ledger.Address(), nil
}

// UpdateEndDate replaces the pool-wide staking end date.
func (p *Pool) UpdateEndDate(caller common.Address, end, now uint64) error {
	if end == 0 {
		return fmt.Errorf("end date is zero: %w", models.ErrInvalidConfiguration)
	}
	if err := p.acl.Require(rbac.ControllerRole, caller); err != nil {
		return err
	}
	if end <= now {
		return fmt.Errorf("end date %d not after %d: %w", end, now, models.ErrInvalidConfiguration)
	}
	cfg := p.config()
	old := cfg.StakingDateEnd
	cfg.StakingDateEnd = end
	p.putConfig(cfg)
	p.emitConfig(caller, "staking_date_end", fmt.Sprint(old), fmt.Sprint(end))
	return nil
}

func (p *Pool) UpdateMinStakeAmount(caller common.Address, minimum *big.Int) error {
	if minimum == nil || minimum.Sign() <= 0 {
		return fmt.Errorf("minimum stake is zero: %w", models.ErrInvalidConfiguration)
	}
	if err := p.acl.Require(rbac.ControllerRole, caller); err != nil {
		return err
	}
	cfg := p.config()
	old := cfg.MinimumStake
	cfg.MinimumStake = new(big.Int).Set(minimum)
	p.putConfig(cfg)
	p.emitConfig(caller, "minimum_stake", old.String(), minimum.String())
	return nil
}

// SetReward sets the reward paid on redemptions at or after the end date and,
// when source is not empty, where that reward comes from.
func (p *Pool) SetReward(caller common.Address, amount *big.Int, source string) error {
	if err := p.acl.Require(rbac.ControllerRole, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("reward: %w", models.ErrInvalidConfiguration)
	}
	cfg := p.config()
	if source != "" {
		if source != models.RewardSourceMint && source != models.RewardSourceReserve {
			return fmt.Errorf("unknown reward source %q: %w", source, models.ErrInvalidConfiguration)
		}
		if source != cfg.RewardSource {
			p.emitConfig(caller, "reward_source", cfg.RewardSource, source)
			cfg.RewardSource = source
		}
	}
	old := cfg.RewardAmount
	cfg.RewardAmount = new(big.Int).Set(amount)
	p.putConfig(cfg)
	p.emitConfig(caller, "reward_amount", old.String(), amount.String())
	return nil
}

// BlacklistAddress bars id from future deposits. Entries are never removed
// and an active deposit of id is left untouched.
func (p *Pool) BlacklistAddress(caller, id common.Address) error {
	if err := p.acl.Require(rbac.ControllerRole, caller); err != nil {
		return err
	}
	if p.IsBlacklisted(id) {
		return nil
	}
	p.st.SetFlag(state.AddrKey(ns, "blacklist", id), true)
	p.emit(events.Event{
		Type: events.EventAddressBlacklisted,
		Payload: map[string]any{
			"pool":    p.address.Hex(),
			"account": id.Hex(),
			"sender":  caller.Hex(),
		},
	})
	return nil
}

// SetDepositContract points future payouts at the ledger at addr. The zero
// address restores direct payouts to depositors.
func (p *Pool) SetDepositContract(caller, addr common.Address) error {
	if err := p.acl.Require(rbac.ControllerRole, caller); err != nil {
		return err
	}
	cfg := p.config()
	old := "none"
	if cfg.DepositContract != nil {
		old = cfg.DepositContract.Hex()
	}
	if addr == (common.Address{}) {
		cfg.DepositContract = nil
		p.putConfig(cfg)
		p.emitConfig(caller, "deposit_contract", old, "none")
		return nil
	}
	if _, ok := p.resolve(addr); !ok {
		return fmt.Errorf("%s is not a deposit ledger: %w", addr.Hex(), models.ErrInvalidConfiguration)
	}
	a := addr
	cfg.DepositContract = &a
	p.putConfig(cfg)
	p.emitConfig(caller, "deposit_contract", old, addr.Hex())
	return nil
}

// ReturnUnauthorizedTokens sends tokens the pool holds beyond the active
// principal, e.g. tokens transferred to it directly, to recipient.
func (p *Pool) ReturnUnauthorizedTokens(caller, recipient common.Address, amount *big.Int) error {
	if err := p.acl.Require(rbac.ControllerRole, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("return tokens: %w", models.ErrInvalidAmount)
	}
	if spare := p.SpareBalance(); spare.Cmp(amount) < 0 {
		return fmt.Errorf("return %s with %s spare: %w", amount, spare, models.ErrInsufficientSpareBalance)
	}
	if err := p.token.Transfer(p.address, recipient, amount); err != nil {
		return fmt.Errorf("return tokens: %w", err)
	}
	p.addCounter("total_recovered", amount)
	p.emit(events.Event{
		Type: events.EventUnauthorizedTokensReturned,
		Payload: map[string]any{
			"contract":  p.address.Hex(),
			"recipient": recipient.Hex(),
			"amount":    amount.String(),
		},
	})
	return nil
}

//
// Getters - no state change
//

func (p *Pool) DepositOf(id common.Address) (*models.Deposit, bool) {
	d, ok := p.st.Get(state.AddrKey(ns, "deposit", id))
	if !ok {
		return nil, false
	}
	return d.(*models.Deposit), true
}

func (p *Pool) IsBlacklisted(id common.Address) bool {
	return p.st.Flag(state.AddrKey(ns, "blacklist", id))
}

// Config returns the current configuration including the blacklist.
func (p *Pool) Config() models.PoolConfig {
	cfg := p.config()
	prefix := state.Key(ns, "blacklist", "")
	cfg.Blacklist = []common.Address{}
	for _, k := range p.st.Keys(prefix) {
		cfg.Blacklist = append(cfg.Blacklist, common.HexToAddress(strings.TrimPrefix(k, prefix)))
	}
	return cfg
}

func (p *Pool) Balance() *big.Int {
	return p.token.BalanceOf(p.address)
}

func (p *Pool) TotalActivePrincipal() *big.Int {
	return p.counter("total_active_principal")
}

// SpareBalance is the pool balance not committed to active deposits.
func (p *Pool) SpareBalance() *big.Int {
	spare := new(big.Int).Sub(p.Balance(), p.TotalActivePrincipal())
	if spare.Sign() < 0 {
		return new(big.Int)
	}
	return spare
}

// ActiveDeposits lists active deposits in depositor address order.
func (p *Pool) ActiveDeposits() []*models.Deposit {
	var out []*models.Deposit
	for _, k := range p.st.Keys(state.Key(ns, "deposit", "")) {
		v, _ := p.st.Get(k)
		if d := v.(*models.Deposit); d.IsActive() {
			out = append(out, d)
		}
	}
	return out
}

// Totals are the pool's lifetime accounting counters.
type Totals struct {
	ActivePrincipal   *big.Int `json:"active_principal"`
	RedeemedPrincipal *big.Int `json:"redeemed_principal"`
	Rewards           *big.Int `json:"rewards"`
	Paid              *big.Int `json:"paid"`
	Recovered         *big.Int `json:"recovered"`
}

func (p *Pool) Totals() Totals {
	return Totals{
		ActivePrincipal:   p.counter("total_active_principal"),
		RedeemedPrincipal: p.counter("total_redeemed_principal"),
		Rewards:           p.counter("total_rewards"),
		Paid:              p.counter("total_paid"),
		Recovered:         p.counter("total_recovered"),
	}
}

func (p *Pool) config() models.PoolConfig {
	v, ok := p.st.Get(state.Key(ns, "config"))
	if !ok {
		return models.PoolConfig{MinimumStake: new(big.Int), RewardAmount: new(big.Int)}
	}
	return v.(models.PoolConfig)
}

func (p *Pool) putConfig(cfg models.PoolConfig) {
	cfg.Blacklist = nil
	p.st.Set(state.Key(ns, "config"), cfg)
}

func (p *Pool) putDeposit(d *models.Deposit) {
	p.st.Set(state.AddrKey(ns, "deposit", d.Depositor), d)
}

func (p *Pool) counter(name string) *big.Int {
	return p.st.Big(state.Key(ns, name))
}

func (p *Pool) addCounter(name string, v *big.Int) {
	p.st.SetBig(state.Key(ns, name), new(big.Int).Add(p.counter(name), v))
}

func (p *Pool) subCounter(name string, v *big.Int) {
	p.st.SetBig(state.Key(ns, name), new(big.Int).Sub(p.counter(name), v))
}

func (p *Pool) emitConfig(caller common.Address, field, old, updated string) {
	p.emit(events.Event{
		Type: events.EventConfigUpdated,
		Payload: map[string]any{
			"pool":   p.address.Hex(),
			"field":  field,
			"old":    old,
			"new":    updated,
			"sender": caller.Hex(),
		},
	})
}
