// Package engine hosts the token, the staking pool and the deposit ledger in
// one state store and applies operations to them one at a time. Every
// operation is all-or-nothing, journaled on success and replayable.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/audt-staking/backend/internal/custody"
	"github.com/audt-staking/backend/internal/events"
	"github.com/audt-staking/backend/internal/metrics"
	"github.com/audt-staking/backend/internal/models"
	"github.com/audt-staking/backend/internal/staking"
	"github.com/audt-staking/backend/internal/state"
	"github.com/audt-staking/backend/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Journal is the durable log of committed operations.
type Journal interface {
	Append(ctx context.Context, op models.Operation) error
	Load(ctx context.Context) ([]models.Operation, error)
}

// Options configure an Engine. Journal, Publisher, Metrics and Clock are
// optional.
type Options struct {
	Journal   Journal
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Clock     func() time.Time
	Log       *zap.Logger
}

// Receipt describes a committed operation.
type Receipt struct {
	Seq       uint64               `json:"seq"`
	Kind      string               `json:"kind"`
	Timestamp uint64               `json:"timestamp"`
	Events    []models.EventRecord `json:"events"`
	Result    any                  `json:"result,omitempty"`
}

type Engine struct {
	mu sync.Mutex

	st     *state.Store
	buf    *events.Buffer
	addrs  Addresses
	token  *token.Ledger
	pool   *staking.Pool
	ledger *custody.Ledger

	genesis Genesis
	journal Journal
	pub     events.Publisher
	metrics *metrics.Metrics
	clock   func() time.Time
	log     *zap.Logger

	seq    uint64 // next sequence number
	lastTS uint64
}

// New builds an engine for genesis. Components are not deployed until Open.
func New(g Genesis, opts Options) (*Engine, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if g.Symbol == "" {
		g.Symbol = "AUDT"
	}
	e := &Engine{
		st:      state.New(),
		buf:     &events.Buffer{},
		addrs:   DeriveAddresses(g.Owner),
		genesis: g,
		journal: opts.Journal,
		pub:     opts.Publisher,
		metrics: opts.Metrics,
		clock:   opts.Clock,
		log:     opts.Log,
	}
	if e.pub == nil {
		e.pub = events.NopPublisher{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}

	e.token = token.New(e.st, e.addrs.Token, g.Symbol, e.buf.Emit)
	e.ledger = custody.New(e.st, e.addrs.Ledger, e.token, e.buf.Emit)
	e.pool = staking.New(e.st, e.addrs.Pool, e.token, e.resolveLedger, e.buf.Emit)
	return e, nil
}

func (e *Engine) resolveLedger(addr common.Address) (staking.DepositLedger, bool) {
	if addr == e.ledger.Address() {
		return e.ledger, true
	}
	return nil, false
}

// Open rebuilds state from the journal, or journals the genesis record when
// the journal is empty.
func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seq != 0 {
		return errors.New("engine already open")
	}

	var ops []models.Operation
	if e.journal != nil {
		var err error
		if ops, err = e.journal.Load(ctx); err != nil {
			return fmt.Errorf("load journal: %w", err)
		}
	}

	genesisArgs, err := json.Marshal(e.genesis)
	if err != nil {
		return err
	}

	if len(ops) == 0 {
		op := models.Operation{
			Kind:      models.OpGenesis,
			Caller:    e.genesis.Owner,
			Timestamp: e.now(),
			Args:      genesisArgs,
		}
		if _, err := e.apply(ctx, op, true); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		e.log.Info("genesis committed",
			zap.String("owner", e.genesis.Owner.Hex()),
			zap.String("token", e.addrs.Token.Hex()),
			zap.String("pool", e.addrs.Pool.Hex()),
			zap.String("ledger", e.addrs.Ledger.Hex()),
		)
		return nil
	}

	if ops[0].Kind != models.OpGenesis || !sameJSON(ops[0].Args, genesisArgs) {
		return ErrGenesisMismatch
	}
	for _, op := range ops {
		if op.Seq != e.seq {
			return fmt.Errorf("replay: expected seq %d, got %d", e.seq, op.Seq)
		}
		if _, err := e.apply(ctx, op, false); err != nil {
			return fmt.Errorf("replay seq %d (%s): %w", op.Seq, op.Kind, err)
		}
	}
	e.log.Info("journal replayed", zap.Uint64("operations", e.seq))
	return nil
}

// Submit executes one operation for caller. args is journaled as JSON and
// must be one of the argument types of this package, or nil.
func (e *Engine) Submit(ctx context.Context, kind string, caller common.Address, args any) (*Receipt, error) {
	var raw json.RawMessage
	if args != nil {
		var err error
		if raw, err = json.Marshal(args); err != nil {
			return nil, fmt.Errorf("encode %s arguments: %w", kind, err)
		}
	}
	if kind == models.OpGenesis {
		return nil, fmt.Errorf("genesis is not submittable: %w", models.ErrUnknownOp)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq == 0 {
		return nil, ErrNotOpen
	}

	op := models.Operation{
		Seq:       e.seq,
		Kind:      kind,
		Caller:    caller,
		Timestamp: e.now(),
		Args:      raw,
	}
	return e.apply(ctx, op, true)
}

// apply runs op under a checkpoint. On any failure, including a failed
// journal append, every write of op is reverted and its events dropped.
func (e *Engine) apply(ctx context.Context, op models.Operation, persist bool) (*Receipt, error) {
	started := time.Now()
	op.Seq = e.seq
	cp := e.st.Checkpoint()
	e.buf.Reset()

	result, err := e.dispatch(op)
	if err == nil {
		op.Events = e.records(op)
		if persist && e.journal != nil {
			if jerr := e.journal.Append(ctx, op); jerr != nil {
				err = fmt.Errorf("journal append: %w", jerr)
			}
		}
	}
	if err != nil {
		e.st.RevertTo(cp)
		e.buf.Reset()
		e.metrics.RecordOperation(op.Kind, metrics.Error, time.Since(started))
		e.metrics.RecordOperationError(op.Kind, models.ErrorKind(err))
		return nil, err
	}

	e.st.Commit()
	e.buf.Reset()
	e.seq++
	e.lastTS = op.Timestamp
	e.metrics.RecordOperation(op.Kind, metrics.Success, time.Since(started))
	e.metrics.Snapshot(op.Seq, e.pool.TotalActivePrincipal(), len(e.pool.ActiveDeposits()), e.ledger.TotalClaimable())

	if persist {
		e.publish(ctx, op)
	}
	return &Receipt{
		Seq:       op.Seq,
		Kind:      op.Kind,
		Timestamp: op.Timestamp,
		Events:    op.Events,
		Result:    result,
	}, nil
}

func (e *Engine) records(op models.Operation) []models.EventRecord {
	raised := e.buf.Events()
	out := make([]models.EventRecord, 0, len(raised))
	for _, ev := range raised {
		out = append(out, models.EventRecord{
			ID:        uuid.New(),
			Seq:       op.Seq,
			Type:      ev.Type,
			Address:   op.Caller,
			Payload:   ev.Payload,
			CreatedAt: time.Unix(int64(op.Timestamp), 0).UTC(),
		})
	}
	return out
}

func (e *Engine) publish(ctx context.Context, op models.Operation) {
	for _, rec := range op.Events {
		payload := make(map[string]any, len(rec.Payload)+4)
		for k, v := range rec.Payload {
			payload[k] = v
		}
		payload["seq"] = rec.Seq
		payload["event_id"] = rec.ID.String()
		payload["timestamp"] = op.Timestamp
		payload["caller"] = rec.Address.Hex()
		if err := e.pub.Publish(ctx, events.StreamStaking, events.Event{Type: rec.Type, Payload: payload}); err != nil {
			e.metrics.RecordPublishError()
			e.log.Warn("publish event failed",
				zap.String("type", rec.Type),
				zap.Uint64("seq", rec.Seq),
				zap.Error(err),
			)
		}
	}
}

// now returns the clock in unix seconds, never earlier than the previous
// committed operation.
func (e *Engine) now() uint64 {
	t := e.clock().Unix()
	if t < 0 {
		t = 0
	}
	now := uint64(t)
	if now < e.lastTS {
		return e.lastTS
	}
	return now
}

func sameJSON(a, b []byte) bool {
	x, err := canonicalJSON(a)
	if err != nil {
		return false
	}
	y, err := canonicalJSON(b)
	if err != nil {
		return false
	}
	return x == y
}

// canonicalJSON re-encodes data with sorted keys and exact numbers.
func canonicalJSON(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	return string(out), err
}

//
// Reads
//

func (e *Engine) Addresses() Addresses {
	return e.addrs
}

func (e *Engine) Genesis() Genesis {
	return e.genesis
}

// Seq returns the number of committed operations, genesis included.
func (e *Engine) Seq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

func (e *Engine) Pool() models.PoolSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.PoolSummary{
		Address:              e.pool.Address(),
		Token:                e.token.Address(),
		Config:               e.pool.Config(),
		Balance:              e.pool.Balance(),
		TotalActivePrincipal: e.pool.TotalActivePrincipal(),
		SpareBalance:         e.pool.SpareBalance(),
		ActiveDeposits:       len(e.pool.ActiveDeposits()),
	}
}

func (e *Engine) PoolTotals() staking.Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Totals()
}

func (e *Engine) DepositOf(id common.Address) (*models.Deposit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.DepositOf(id)
}

func (e *Engine) ActiveDeposits() []*models.Deposit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.ActiveDeposits()
}

func (e *Engine) Claimable(id common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.ReturnDepositAmount(id)
}

func (e *Engine) LedgerEntries() []custody.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Entries()
}

// TokenAccount is the token view of one identity.
type TokenAccount struct {
	Address         common.Address `json:"address"`
	Balance         *big.Int       `json:"balance"`
	PoolAllowance   *big.Int       `json:"pool_allowance"`
	LedgerAllowance *big.Int       `json:"ledger_allowance"`
}

func (e *Engine) TokenAccount(id common.Address) TokenAccount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return TokenAccount{
		Address:         id,
		Balance:         e.token.BalanceOf(id),
		PoolAllowance:   e.token.Allowance(id, e.pool.Address()),
		LedgerAllowance: e.token.Allowance(id, e.ledger.Address()),
	}
}

func (e *Engine) TotalSupply() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token.TotalSupply()
}

// Members lists the holders of role on target.
func (e *Engine) Members(target string, role common.Hash) ([]common.Address, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acl, err := e.roles(target)
	if err != nil {
		return nil, err
	}
	return acl.Members(role), nil
}

func (e *Engine) HasRole(target string, role common.Hash, id common.Address) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acl, err := e.roles(target)
	if err != nil {
		return false, err
	}
	return acl.HasRole(role, id), nil
}

// Now is the timestamp the next operation would run at.
func (e *Engine) Now() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now()
}
