package staking

import (
	"math/big"
	"testing"

	"github.com/audt-staking/backend/internal/custody"
	"github.com/audt-staking/backend/internal/events"
	"github.com/audt-staking/backend/internal/models"
	"github.com/audt-staking/backend/internal/rbac"
	"github.com/audt-staking/backend/internal/state"
	"github.com/audt-staking/backend/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner   = common.HexToAddress("0x3000")
	holder1 = common.HexToAddress("0x3001")
	holder2 = common.HexToAddress("0x3002")

	tokenAddr  = common.HexToAddress("0x30a0")
	poolAddr   = common.HexToAddress("0x30b0")
	ledgerAddr = common.HexToAddress("0x30c0")
)

const start uint64 = 1_700_000_000

// tokens converts whole tokens to base units with 18 decimals.
func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type fixture struct {
	st     *state.Store
	buf    *events.Buffer
	tok    *token.Ledger
	ledger *custody.Ledger
	pool   *Pool
}

func newFixture(t *testing.T, end uint64) *fixture {
	t.Helper()
	st := state.New()
	buf := &events.Buffer{}
	tok := token.New(st, tokenAddr, "AUDT", buf.Emit)
	require.NoError(t, tok.Deploy(owner))
	ledger := custody.New(st, ledgerAddr, tok, buf.Emit)
	require.NoError(t, ledger.Deploy(owner))

	resolve := func(addr common.Address) (DepositLedger, bool) {
		if addr == ledgerAddr {
			return ledger, true
		}
		return nil, false
	}
	pool := New(st, poolAddr, tok, resolve, buf.Emit)
	require.NoError(t, pool.Deploy(owner, Config{
		StakingDateEnd: end,
		MinimumStake:   tokens(1000),
		RewardSource:   models.RewardSourceMint,
	}))

	for _, h := range []common.Address{holder1, holder2} {
		require.NoError(t, tok.Mint(owner, h, tokens(5000)))
		require.NoError(t, tok.Approve(h, poolAddr, tokens(5000)))
	}
	buf.Reset()
	return &fixture{st: st, buf: buf, tok: tok, ledger: ledger, pool: pool}
}

func (f *fixture) eventTypes() []string {
	var out []string
	for _, e := range f.buf.Events() {
		out = append(out, e.Type)
	}
	return out
}

func TestDeployValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero end date", Config{MinimumStake: big.NewInt(1), RewardSource: models.RewardSourceMint}},
		{"zero minimum", Config{StakingDateEnd: 1, MinimumStake: big.NewInt(0), RewardSource: models.RewardSourceMint}},
		{"negative reward", Config{StakingDateEnd: 1, MinimumStake: big.NewInt(1), RewardAmount: big.NewInt(-1), RewardSource: models.RewardSourceMint}},
		{"unknown source", Config{StakingDateEnd: 1, MinimumStake: big.NewInt(1), RewardSource: "airdrop"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(state.New(), poolAddr, nil, nil, (&events.Buffer{}).Emit)
			require.ErrorIs(t, p.Deploy(owner, tt.cfg), models.ErrInvalidConfiguration)
		})
	}
}

func TestStake(t *testing.T) {
	f := newFixture(t, start+2000)

	d, err := f.pool.Stake(holder1, tokens(1000), start)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusActive, d.Status)
	assert.Equal(t, tokens(1000).String(), f.pool.Balance().String())
	assert.Equal(t, tokens(4000).String(), f.tok.BalanceOf(holder1).String())
	assert.Equal(t, tokens(1000).String(), f.pool.TotalActivePrincipal().String())
	assert.Equal(t, []string{events.EventTransfer, events.EventDepositAccepted}, f.eventTypes())

	got, ok := f.pool.DepositOf(holder1)
	require.True(t, ok)
	assert.Equal(t, tokens(1000).String(), got.Principal.String())
}

func TestStakeRejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture)
		caller  common.Address
		amount  *big.Int
		now     uint64
		wantErr error
	}{
		{
			name:    "below minimum",
			caller:  holder1,
			amount:  new(big.Int).Sub(tokens(1000), big.NewInt(1)),
			now:     start,
			wantErr: models.ErrBelowMinimum,
		},
		{
			name:    "nil amount",
			caller:  holder1,
			now:     start,
			wantErr: models.ErrBelowMinimum,
		},
		{
			name:    "after deadline",
			caller:  holder1,
			amount:  tokens(1000),
			now:     start + 2001,
			wantErr: models.ErrDeadlinePassed,
		},
		{
			name: "blacklisted",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.pool.BlacklistAddress(owner, holder1))
			},
			caller:  holder1,
			amount:  tokens(1000),
			now:     start,
			wantErr: models.ErrBlacklisted,
		},
		{
			name: "second active deposit",
			setup: func(t *testing.T, f *fixture) {
				_, err := f.pool.Stake(holder1, tokens(1000), start)
				require.NoError(t, err)
			},
			caller:  holder1,
			amount:  tokens(1000),
			now:     start + 1,
			wantErr: models.ErrDuplicateDeposit,
		},
		{
			name: "no allowance",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.tok.Approve(holder1, poolAddr, big.NewInt(0)))
			},
			caller:  holder1,
			amount:  tokens(1000),
			now:     start,
			wantErr: models.ErrTransferFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, start+2000)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			principal := f.pool.TotalActivePrincipal()
			balance := f.tok.BalanceOf(tt.caller)

			_, err := f.pool.Stake(tt.caller, tt.amount, tt.now)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, principal.String(), f.pool.TotalActivePrincipal().String())
			assert.Equal(t, balance.String(), f.tok.BalanceOf(tt.caller).String())
		})
	}
}

func TestStakeAtDeadlineIsAccepted(t *testing.T) {
	f := newFixture(t, start+2000)
	_, err := f.pool.Stake(holder1, tokens(1000), start+2000)
	require.NoError(t, err)
}

func TestRedeemBeforeDeadlinePaysPrincipal(t *testing.T) {
	f := newFixture(t, start+2000)
	require.NoError(t, f.pool.SetReward(owner, tokens(50), ""))
	_, err := f.pool.Stake(holder1, tokens(1000), start)
	require.NoError(t, err)

	d, err := f.pool.Redeem(holder1, start+10)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusRedeemed, d.Status)
	assert.Equal(t, 0, d.Reward.Sign())
	assert.Equal(t, tokens(5000).String(), f.tok.BalanceOf(holder1).String())
	assert.Equal(t, 0, f.pool.TotalActivePrincipal().Sign())

	_, err = f.pool.Redeem(holder1, start+11)
	require.ErrorIs(t, err, models.ErrNoActiveDeposit)
}

func TestRedeemAfterDeadlineMintsReward(t *testing.T) {
	f := newFixture(t, start+2000)
	require.NoError(t, f.tok.Roles().GrantRole(owner, rbac.MinterRole, poolAddr))
	require.NoError(t, f.pool.SetReward(owner, tokens(50), ""))
	_, err := f.pool.Stake(holder1, tokens(1000), start)
	require.NoError(t, err)
	supply := f.tok.TotalSupply()

	d, err := f.pool.Redeem(holder1, start+2000)
	require.NoError(t, err)
	assert.Equal(t, tokens(50).String(), d.Reward.String())
	assert.Equal(t, tokens(1050).String(), d.Payout.String())
	assert.Equal(t, tokens(5050).String(), f.tok.BalanceOf(holder1).String())
	assert.Equal(t, new(big.Int).Add(supply, tokens(50)).String(), f.tok.TotalSupply().String())

	totals := f.pool.Totals()
	assert.Equal(t, totals.Paid.String(), new(big.Int).Add(totals.RedeemedPrincipal, totals.Rewards).String())
}

func TestRedeemFailureLeavesDepositActive(t *testing.T) {
	f := newFixture(t, start+2000)
	// the pool was never granted MINTER_ROLE
	require.NoError(t, f.pool.SetReward(owner, tokens(50), ""))
	_, err := f.pool.Stake(holder1, tokens(1000), start)
	require.NoError(t, err)

	_, err = f.pool.Redeem(holder1, start+3000)
	require.ErrorIs(t, err, models.ErrUnauthorized)

	d, ok := f.pool.DepositOf(holder1)
	require.True(t, ok)
	assert.True(t, d.IsActive())
	assert.Equal(t, tokens(1000).String(), f.pool.Balance().String())
	assert.Equal(t, tokens(4000).String(), f.tok.BalanceOf(holder1).String())
}

func TestRedeemRewardFromReserve(t *testing.T) {
	f := newFixture(t, start+2000)
	require.NoError(t, f.pool.SetReward(owner, tokens(10), models.RewardSourceReserve))
	assert.Equal(t, models.RewardSourceReserve, f.pool.Config().RewardSource)

	_, err := f.pool.Stake(holder1, tokens(1000), start)
	require.NoError(t, err)

	_, err = f.pool.Redeem(holder1, start+2000)
	require.ErrorIs(t, err, models.ErrInsufficientSpareBalance)

	require.NoError(t, f.tok.Transfer(holder2, poolAddr, tokens(10)))
	d, err := f.pool.Redeem(holder1, start+2000)
	require.NoError(t, err)
	assert.Equal(t, tokens(1010).String(), d.Payout.String())
	assert.Equal(t, 0, f.pool.Balance().Sign())
}

func TestRedeemThroughDepositLedger(t *testing.T) {
	f := newFixture(t, start+2000)
	require.NoError(t, f.ledger.Roles().GrantRole(owner, rbac.ControllerRole, poolAddr))
	require.NoError(t, f.pool.SetDepositContract(owner, ledgerAddr))
	_, err := f.pool.Stake(holder1, tokens(1000), start)
	require.NoError(t, err)

	_, err = f.pool.Redeem(holder1, start+5)
	require.NoError(t, err)
	assert.Equal(t, tokens(4000).String(), f.tok.BalanceOf(holder1).String())
	assert.Equal(t, tokens(1000).String(), f.ledger.ReturnDepositAmount(holder1).String())

	paid, err := f.ledger.Redeem(holder1)
	require.NoError(t, err)
	assert.Equal(t, tokens(1000).String(), paid.String())
	assert.Equal(t, tokens(5000).String(), f.tok.BalanceOf(holder1).String())
}

func TestRedeemWithoutLedgerControllerRole(t *testing.T) {
	f := newFixture(t, start+2000)
	require.NoError(t, f.pool.SetDepositContract(owner, ledgerAddr))
	_, err := f.pool.Stake(holder1, tokens(1000), start)
	require.NoError(t, err)

	_, err = f.pool.Redeem(holder1, start+5)
	require.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Equal(t, tokens(1000).String(), f.pool.Balance().String())
	assert.Equal(t, 0, f.tok.BalanceOf(ledgerAddr).Sign())
}

func TestOneDepositPerDepositor(t *testing.T) {
	f := newFixture(t, start+2000)
	_, err := f.pool.Stake(holder1, tokens(1000), start)
	require.NoError(t, err)
	_, err = f.pool.Redeem(holder1, start+60)
	require.NoError(t, err)

	_, err = f.pool.Stake(holder1, tokens(2000), start+120)
	require.ErrorIs(t, err, models.ErrDuplicateDeposit, "a redeemed deposit still counts")
	_, err = f.pool.Redeem(holder1, start+180)
	require.ErrorIs(t, err, models.ErrNoActiveDeposit)

	d, ok := f.pool.DepositOf(holder1)
	require.True(t, ok)
	assert.Equal(t, models.DepositStatusRedeemed, d.Status)
	assert.Equal(t, tokens(1000).String(), d.Principal.String())
	assert.Empty(t, f.pool.ActiveDeposits())
	assert.Equal(t, tokens(5000).String(), f.tok.BalanceOf(holder1).String())
}

func TestUpdateEndDate(t *testing.T) {
	f := newFixture(t, start+2000)

	require.ErrorIs(t, f.pool.UpdateEndDate(owner, 0, start), models.ErrInvalidConfiguration)
	require.ErrorIs(t, f.pool.UpdateEndDate(holder1, 0, start), models.ErrInvalidConfiguration, "zero is checked first")
	require.ErrorIs(t, f.pool.UpdateEndDate(holder1, start+5000, start), models.ErrUnauthorized)
	require.ErrorIs(t, f.pool.UpdateEndDate(owner, start, start), models.ErrInvalidConfiguration)

	require.NoError(t, f.pool.UpdateEndDate(owner, start+5000, start))
	assert.Equal(t, start+5000, f.pool.Config().StakingDateEnd)

	// an early end date closes the window for deposits
	require.NoError(t, f.pool.UpdateEndDate(owner, start+10, start))
	_, err := f.pool.Stake(holder1, tokens(1000), start+11)
	require.ErrorIs(t, err, models.ErrDeadlinePassed)
}

func TestUpdateMinStakeAmount(t *testing.T) {
	f := newFixture(t, start+2000)

	require.ErrorIs(t, f.pool.UpdateMinStakeAmount(owner, big.NewInt(0)), models.ErrInvalidConfiguration)
	require.ErrorIs(t, f.pool.UpdateMinStakeAmount(holder1, tokens(1)), models.ErrUnauthorized)
	require.NoError(t, f.pool.UpdateMinStakeAmount(owner, tokens(3000)))

	_, err := f.pool.Stake(holder1, tokens(2999), start)
	require.ErrorIs(t, err, models.ErrBelowMinimum)
	_, err = f.pool.Stake(holder1, tokens(3000), start)
	require.NoError(t, err)
}

func TestSetReward(t *testing.T) {
	f := newFixture(t, start+2000)

	require.ErrorIs(t, f.pool.SetReward(holder1, tokens(5), ""), models.ErrUnauthorized)
	require.ErrorIs(t, f.pool.SetReward(owner, big.NewInt(-1), ""), models.ErrInvalidConfiguration)
	require.ErrorIs(t, f.pool.SetReward(owner, tokens(5), "airdrop"), models.ErrInvalidConfiguration)

	require.NoError(t, f.pool.SetReward(owner, tokens(5), models.RewardSourceReserve))
	cfg := f.pool.Config()
	assert.Equal(t, tokens(5).String(), cfg.RewardAmount.String())
	assert.Equal(t, models.RewardSourceReserve, cfg.RewardSource)

	// an empty source keeps the current one
	require.NoError(t, f.pool.SetReward(owner, big.NewInt(0), ""))
	assert.Equal(t, models.RewardSourceReserve, f.pool.Config().RewardSource)
}

func TestBlacklistKeepsActiveDeposit(t *testing.T) {
	f := newFixture(t, start+2000)
	_, err := f.pool.Stake(holder1, tokens(1000), start)
	require.NoError(t, err)

	require.ErrorIs(t, f.pool.BlacklistAddress(holder2, holder1), models.ErrUnauthorized)
	require.NoError(t, f.pool.BlacklistAddress(owner, holder1))
	require.NoError(t, f.pool.BlacklistAddress(owner, holder1))
	assert.Equal(t, []common.Address{holder1}, f.pool.Config().Blacklist)

	_, err = f.pool.Redeem(holder1, start+1)
	require.NoError(t, err)
	_, err = f.pool.Stake(holder1, tokens(1000), start+2)
	require.ErrorIs(t, err, models.ErrBlacklisted)
}

func TestSetDepositContract(t *testing.T) {
	f := newFixture(t, start+2000)

	require.ErrorIs(t, f.pool.SetDepositContract(holder1, ledgerAddr), models.ErrUnauthorized)
	require.ErrorIs(t, f.pool.SetDepositContract(owner, holder2), models.ErrInvalidConfiguration)

	require.NoError(t, f.pool.SetDepositContract(owner, ledgerAddr))
	require.NotNil(t, f.pool.Config().DepositContract)
	assert.Equal(t, ledgerAddr, *f.pool.Config().DepositContract)

	require.NoError(t, f.pool.SetDepositContract(owner, common.Address{}))
	assert.Nil(t, f.pool.Config().DepositContract)
}

func TestReturnUnauthorizedTokens(t *testing.T) {
	f := newFixture(t, start+2000)

	require.ErrorIs(t, f.pool.ReturnUnauthorizedTokens(owner, holder2, tokens(1)), models.ErrInsufficientSpareBalance)

	_, err := f.pool.Stake(holder1, tokens(1000), start)
	require.NoError(t, err)
	require.NoError(t, f.tok.Transfer(holder2, poolAddr, tokens(300)))
	assert.Equal(t, tokens(300).String(), f.pool.SpareBalance().String())

	require.ErrorIs(t, f.pool.ReturnUnauthorizedTokens(holder2, holder2, tokens(300)), models.ErrUnauthorized)
	require.ErrorIs(t, f.pool.ReturnUnauthorizedTokens(owner, holder2, tokens(301)), models.ErrInsufficientSpareBalance)
	require.ErrorIs(t, f.pool.ReturnUnauthorizedTokens(owner, holder2, big.NewInt(0)), models.ErrInvalidAmount)

	require.NoError(t, f.pool.ReturnUnauthorizedTokens(owner, holder2, tokens(300)))
	assert.Equal(t, tokens(5000).String(), f.tok.BalanceOf(holder2).String())
	assert.Equal(t, tokens(1000).String(), f.pool.Balance().String())
	assert.Equal(t, tokens(300).String(), f.pool.Totals().Recovered.String())
}

func TestActiveDepositsOrder(t *testing.T) {
	f := newFixture(t, start+2000)
	_, err := f.pool.Stake(holder2, tokens(1000), start)
	require.NoError(t, err)
	_, err = f.pool.Stake(holder1, tokens(1500), start)
	require.NoError(t, err)

	active := f.pool.ActiveDeposits()
	require.Len(t, active, 2)
	assert.Equal(t, holder1, active[0].Depositor)
	assert.Equal(t, holder2, active[1].Depositor)
	assert.Equal(t, tokens(2500).String(), f.pool.TotalActivePrincipal().String())
}
