package engine

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/audt-staking/backend/internal/events"
	"github.com/audt-staking/backend/internal/journal"
	"github.com/audt-staking/backend/internal/models"
	"github.com/audt-staking/backend/internal/rbac"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner   = common.HexToAddress("0x5000")
	holder1 = common.HexToAddress("0x5001")
	holder2 = common.HexToAddress("0x5002")
)

const start int64 = 1_700_000_000

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// flakyJournal fails appends while broken is set.
type flakyJournal struct {
	*journal.Memory
	broken bool
}

func (j *flakyJournal) Append(ctx context.Context, op models.Operation) error {
	if j.broken {
		return errors.New("disk full")
	}
	return j.Memory.Append(ctx, op)
}

func testGenesis() Genesis {
	return Genesis{
		Owner:          owner,
		StakingDateEnd: uint64(start + 2000),
		MinimumStake:   tokens(1000),
		RewardAmount:   tokens(50),
		RewardSource:   models.RewardSourceMint,
		OwnerSupply:    tokens(100_000),
		WireLedger:     true,
	}
}

type harness struct {
	eng     *Engine
	clock   *fakeClock
	journal Journal
	pub     *recordingPublisher
}

func newHarness(t *testing.T, g Genesis, j Journal) *harness {
	t.Helper()
	if j == nil {
		j = journal.NewMemory()
	}
	clock := &fakeClock{now: time.Unix(start, 0)}
	pub := &recordingPublisher{}
	eng, err := New(g, Options{Journal: j, Publisher: pub, Clock: clock.Now})
	require.NoError(t, err)
	require.NoError(t, eng.Open(context.Background()))
	return &harness{eng: eng, clock: clock, journal: j, pub: pub}
}

func (h *harness) submit(t *testing.T, kind string, caller common.Address, args any) *Receipt {
	t.Helper()
	r, err := h.eng.Submit(context.Background(), kind, caller, args)
	require.NoError(t, err, kind)
	return r
}

// fund gives holder tokens and approves the pool for all of them.
func (h *harness) fund(t *testing.T, holder common.Address, amount *big.Int) {
	t.Helper()
	h.submit(t, models.OpTokenTransfer, owner, TransferArgs{To: holder, Amount: amount})
	h.submit(t, models.OpTokenApprove, holder, ApproveArgs{Spender: h.eng.Addresses().Pool, Amount: amount})
}

func TestGenesisDeploysComponents(t *testing.T) {
	h := newHarness(t, testGenesis(), nil)
	addrs := h.eng.Addresses()

	assert.Equal(t, DeriveAddresses(owner), addrs)
	assert.NotEqual(t, addrs.Token, addrs.Pool)
	assert.Equal(t, uint64(1), h.eng.Seq())

	summary := h.eng.Pool()
	assert.Equal(t, addrs.Pool, summary.Address)
	require.NotNil(t, summary.Config.DepositContract)
	assert.Equal(t, addrs.Ledger, *summary.Config.DepositContract)
	assert.Equal(t, tokens(100_000).String(), h.eng.TokenAccount(owner).Balance.String())

	minter, err := h.eng.HasRole(TargetToken, rbac.MinterRole, addrs.Pool)
	require.NoError(t, err)
	assert.True(t, minter)
	controller, err := h.eng.HasRole(TargetLedger, rbac.ControllerRole, addrs.Pool)
	require.NoError(t, err)
	assert.True(t, controller)

	_, err = h.eng.Submit(context.Background(), models.OpGenesis, owner, testGenesis())
	require.ErrorIs(t, err, models.ErrUnknownOp)
}

func TestNewRejectsInvalidGenesis(t *testing.T) {
	g := testGenesis()
	g.MinimumStake = big.NewInt(0)
	_, err := New(g, Options{})
	require.ErrorIs(t, err, models.ErrInvalidConfiguration)

	g = testGenesis()
	g.Owner = common.Address{}
	_, err = New(g, Options{})
	require.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestStakeRedeemClaimLifecycle(t *testing.T) {
	h := newHarness(t, testGenesis(), nil)
	h.fund(t, holder1, tokens(5000))
	h.fund(t, holder2, tokens(5000))

	h.submit(t, models.OpStake, holder1, AmountArgs{Amount: tokens(1000)})
	h.submit(t, models.OpStake, holder2, AmountArgs{Amount: tokens(2000)})

	_, err := h.eng.Submit(context.Background(), models.OpStake, holder1, AmountArgs{Amount: tokens(1000)})
	require.ErrorIs(t, err, models.ErrDuplicateDeposit)

	// holder2 leaves early and gets principal only
	h.clock.Advance(100 * time.Second)
	r := h.submit(t, models.OpRedeem, holder2, nil)
	d := r.Result.(*models.Deposit)
	assert.Equal(t, 0, d.Reward.Sign())
	assert.Equal(t, tokens(2000).String(), h.eng.Claimable(holder2).String())

	// holder1 waits for the deadline and gets the reward
	h.clock.Advance(2000 * time.Second)
	r = h.submit(t, models.OpRedeem, holder1, nil)
	d = r.Result.(*models.Deposit)
	assert.Equal(t, tokens(50).String(), d.Reward.String())
	assert.Equal(t, tokens(1050).String(), h.eng.Claimable(holder1).String())

	_, err = h.eng.Submit(context.Background(), models.OpRedeem, holder1, nil)
	require.ErrorIs(t, err, models.ErrNoActiveDeposit)

	r = h.submit(t, models.OpLedgerClaim, holder1, nil)
	assert.Equal(t, tokens(1050).String(), r.Result.(*big.Int).String())
	assert.Equal(t, tokens(5050).String(), h.eng.TokenAccount(holder1).Balance.String())

	_, err = h.eng.Submit(context.Background(), models.OpLedgerClaim, holder1, nil)
	require.ErrorIs(t, err, models.ErrNothingToClaim)

	_, err = h.eng.Submit(context.Background(), models.OpStake, holder1, AmountArgs{Amount: tokens(1000)})
	require.ErrorIs(t, err, models.ErrDeadlinePassed)

	assert.Empty(t, h.eng.CheckInvariants())
	assert.True(t, h.eng.StakingWindowClosed())
}

func TestFailedOperationLeavesNoTrace(t *testing.T) {
	h := newHarness(t, testGenesis(), nil)
	h.fund(t, holder1, tokens(5000))
	seq := h.eng.Seq()
	published := len(h.pub.types())

	_, err := h.eng.Submit(context.Background(), models.OpStake, holder1, AmountArgs{Amount: tokens(999)})
	require.ErrorIs(t, err, models.ErrBelowMinimum)

	assert.Equal(t, seq, h.eng.Seq())
	assert.Len(t, h.pub.types(), published)
	ops, err := h.journal.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, ops, int(seq))
}

func TestJournalFailureRevertsOperation(t *testing.T) {
	j := &flakyJournal{Memory: journal.NewMemory()}
	h := newHarness(t, testGenesis(), j)
	h.fund(t, holder1, tokens(5000))
	published := len(h.pub.types())

	j.broken = true
	_, err := h.eng.Submit(context.Background(), models.OpStake, holder1, AmountArgs{Amount: tokens(1000)})
	require.Error(t, err)

	_, ok := h.eng.DepositOf(holder1)
	assert.False(t, ok)
	assert.Equal(t, tokens(5000).String(), h.eng.TokenAccount(holder1).Balance.String())
	assert.Len(t, h.pub.types(), published)

	j.broken = false
	h.submit(t, models.OpStake, holder1, AmountArgs{Amount: tokens(1000)})
	d, ok := h.eng.DepositOf(holder1)
	require.True(t, ok)
	assert.True(t, d.IsActive())
}

func TestOpenReplaysJournal(t *testing.T) {
	h := newHarness(t, testGenesis(), nil)
	h.fund(t, holder1, tokens(5000))
	h.submit(t, models.OpStake, holder1, AmountArgs{Amount: tokens(1500)})
	h.submit(t, models.OpBlacklistAddress, owner, AddressArgs{Address: holder2})
	h.clock.Advance(3000 * time.Second)
	h.submit(t, models.OpRedeem, holder1, nil)

	replayed, err := New(testGenesis(), Options{Journal: h.journal})
	require.NoError(t, err)
	require.NoError(t, replayed.Open(context.Background()))

	assert.Equal(t, h.eng.Seq(), replayed.Seq())
	assert.Equal(t, h.eng.Claimable(holder1).String(), replayed.Claimable(holder1).String())
	assert.Equal(t, h.eng.Pool().Config.Blacklist, replayed.Pool().Config.Blacklist)
	assert.Equal(t, h.eng.TotalSupply().String(), replayed.TotalSupply().String())
	assert.Empty(t, replayed.CheckInvariants())

	// the replayed engine continues the sequence
	r, err := replayed.Submit(context.Background(), models.OpLedgerClaim, holder1, nil)
	require.NoError(t, err)
	assert.Equal(t, h.eng.Seq(), r.Seq)
}

func TestOpenRejectsForeignJournal(t *testing.T) {
	h := newHarness(t, testGenesis(), nil)

	g := testGenesis()
	g.MinimumStake = tokens(2000)
	other, err := New(g, Options{Journal: h.journal})
	require.NoError(t, err)
	require.ErrorIs(t, other.Open(context.Background()), ErrGenesisMismatch)
}

func TestTimestampsNeverDecrease(t *testing.T) {
	h := newHarness(t, testGenesis(), nil)
	h.clock.Advance(10 * time.Second)
	first := h.submit(t, models.OpTokenTransfer, owner, TransferArgs{To: holder1, Amount: big.NewInt(1)})

	h.clock.Advance(-time.Hour)
	second := h.submit(t, models.OpTokenTransfer, owner, TransferArgs{To: holder1, Amount: big.NewInt(1)})
	assert.Equal(t, first.Timestamp, second.Timestamp)
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	h := newHarness(t, testGenesis(), nil)
	h.fund(t, holder1, tokens(5000))
	before := len(h.pub.types())

	r := h.submit(t, models.OpStake, holder1, AmountArgs{Amount: tokens(1000)})
	got := h.pub.types()[before:]
	assert.Equal(t, []string{events.EventTransfer, events.EventDepositAccepted}, got)
	require.Len(t, r.Events, 2)
	assert.Equal(t, r.Seq, r.Events[1].Seq)
	assert.Equal(t, holder1, r.Events[1].Address)
}

func TestRoleOperations(t *testing.T) {
	h := newHarness(t, testGenesis(), nil)

	_, err := h.eng.Submit(context.Background(), models.OpUpdateEndDate, holder1, EndDateArgs{StakingDateEnd: uint64(start + 9000)})
	require.ErrorIs(t, err, models.ErrUnauthorized)

	h.submit(t, models.OpGrantRole, owner, RoleArgs{Target: TargetPool, Role: rbac.ControllerRole, Account: holder1})
	h.submit(t, models.OpUpdateEndDate, holder1, EndDateArgs{StakingDateEnd: uint64(start + 9000)})
	assert.Equal(t, uint64(start+9000), h.eng.Pool().Config.StakingDateEnd)

	_, err = h.eng.Submit(context.Background(), models.OpRevokeRole, holder1, RoleArgs{Target: TargetPool, Role: rbac.ControllerRole, Account: holder1})
	require.ErrorIs(t, err, models.ErrUnauthorized)
	h.submit(t, models.OpRevokeRole, owner, RoleArgs{Target: TargetPool, Role: rbac.ControllerRole, Account: holder1})

	members, err := h.eng.Members(TargetPool, rbac.ControllerRole)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{owner}, members)

	_, err = h.eng.Submit(context.Background(), models.OpGrantRole, owner, RoleArgs{Target: "vault", Role: rbac.ControllerRole, Account: holder1})
	require.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestUnknownOperation(t *testing.T) {
	h := newHarness(t, testGenesis(), nil)
	_, err := h.eng.Submit(context.Background(), "withdraw_everything", holder1, nil)
	require.ErrorIs(t, err, models.ErrUnknownOp)

	_, err = h.eng.Submit(context.Background(), models.OpStake, holder1, nil)
	require.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestSubmitBeforeOpen(t *testing.T) {
	eng, err := New(testGenesis(), Options{})
	require.NoError(t, err)
	_, err = eng.Submit(context.Background(), models.OpRedeem, holder1, nil)
	require.ErrorIs(t, err, ErrNotOpen)
}
