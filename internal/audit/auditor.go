// Package audit replays the operation journal into a fresh engine and checks
// the accounting invariants of the rebuilt state.
package audit

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/audt-staking/backend/internal/engine"
	"github.com/audt-staking/backend/internal/events"
	"github.com/audt-staking/backend/internal/journal"
	"github.com/audt-staking/backend/internal/metrics"
	"github.com/audt-staking/backend/internal/models"
	"go.uber.org/zap"
)

var errReadOnly = errors.New("audit journal is read-only")

// replay serves a loaded journal to the replaying engine and refuses writes.
type replay []models.Operation

func (r replay) Append(context.Context, models.Operation) error { return errReadOnly }

func (r replay) Load(context.Context) ([]models.Operation, error) { return r, nil }

// Report is the outcome of one audit pass.
type Report struct {
	Seq          uint64             `json:"seq"`
	Violations   []engine.Violation `json:"violations"`
	WindowClosed bool               `json:"window_closed"`
}

type Auditor struct {
	genesis engine.Genesis
	src     journal.Loader
	pub     events.Publisher
	metrics *metrics.Metrics
	clock   func() time.Time
	log     *zap.Logger

	announcedEnd uint64 // deadline whose closing was already published
}

func NewAuditor(g engine.Genesis, src journal.Loader, pub events.Publisher, m *metrics.Metrics, clock func() time.Time, log *zap.Logger) *Auditor {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Auditor{genesis: g, src: src, pub: pub, metrics: m, clock: clock, log: log}
}

// RunOnce audits the journal as it is now. An empty journal yields an empty
// report.
func (a *Auditor) RunOnce(ctx context.Context) (Report, error) {
	ops, err := a.src.Load(ctx)
	if err != nil {
		return Report{}, err
	}
	if len(ops) == 0 {
		return Report{}, nil
	}

	eng, err := engine.New(a.genesis, engine.Options{Journal: replay(ops), Clock: a.clock})
	if err != nil {
		return Report{}, err
	}
	if err := eng.Open(ctx); err != nil {
		return Report{}, err
	}

	pool := eng.Pool()
	claimable := new(big.Int)
	for _, e := range eng.LedgerEntries() {
		claimable.Add(claimable, e.Amount)
	}
	rep := Report{
		Seq:          eng.Seq() - 1,
		Violations:   eng.CheckInvariants(),
		WindowClosed: eng.StakingWindowClosed(),
	}
	a.metrics.Snapshot(rep.Seq, pool.TotalActivePrincipal, pool.ActiveDeposits, claimable)

	for _, v := range rep.Violations {
		a.metrics.RecordViolation(v.Invariant)
		a.log.Error("invariant violated",
			zap.Uint64("seq", rep.Seq),
			zap.String("invariant", v.Invariant),
			zap.String("detail", v.Detail),
		)
		a.publish(ctx, events.Event{
			Type: events.EventInvariantViolation,
			Payload: map[string]any{
				"seq":       rep.Seq,
				"invariant": v.Invariant,
				"detail":    v.Detail,
			},
		})
	}

	end := pool.Config.StakingDateEnd
	if rep.WindowClosed && a.announcedEnd != end {
		a.announcedEnd = end
		a.log.Info("staking window closed", zap.Uint64("staking_date_end", end))
		a.publish(ctx, events.Event{
			Type: events.EventStakingWindowClosed,
			Payload: map[string]any{
				"pool":                   pool.Address.Hex(),
				"staking_date_end":       end,
				"total_active_principal": pool.TotalActivePrincipal.String(),
				"active_deposits":        pool.ActiveDeposits,
			},
		})
	}

	return rep, nil
}

// Run audits every interval until ctx is done.
func (a *Auditor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rep, err := a.RunOnce(ctx)
			if err != nil {
				a.log.Error("journal audit failed", zap.Error(err))
				continue
			}
			a.log.Debug("journal audited", zap.Uint64("seq", rep.Seq), zap.Int("violations", len(rep.Violations)))
		case <-ctx.Done():
			return
		}
	}
}

func (a *Auditor) publish(ctx context.Context, ev events.Event) {
	if err := a.pub.Publish(ctx, events.StreamStaking, ev); err != nil {
		a.metrics.RecordPublishError()
		a.log.Warn("publish audit event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}
