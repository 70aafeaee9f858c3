package confirmation

import (
	"context"

	"github.com/forkwatchlabs/forkwatch/config/params"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/forkchoice"
	"github.com/forkwatchlabs/forkwatch/snapshot"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// ConfirmationTiming records how long after its proposal a block was first
// observed as confirmed, in seconds.
type ConfirmationTiming struct {
	Root    types.Root `json:"root"`
	Slot    types.Slot `json:"slot"`
	Seconds uint64     `json:"seconds"`
}

type confirmedRecord struct {
	slot types.Slot
	at   types.Slot
}

// Analyzer replays a stream of slot-ordered snapshots through the engine for
// one fixed threshold pair. It tracks the confirmed head across snapshots,
// measures time to confirmation, and watches every block it ever confirmed
// for later reorgs. An analyzer is not safe for concurrent use; sweeps run
// one analyzer per threshold pair instead.
type Analyzer struct {
	cfg    *params.ChainConfig
	engine *Engine
	th     Thresholds

	prior        PriorState
	lastSlot     types.Slot
	hasProcessed bool
	// missedView is set when a snapshot had to be skipped, so the next
	// confirmation's observation slot cannot be trusted as the first one.
	missedView bool

	verdicts  []*Verdict
	confirmed map[types.Root]confirmedRecord
	// confirmedOrder holds the confirmed roots in the order they were booked,
	// so anomaly reports come out in a stable order.
	confirmedOrder []types.Root
	anomalous      map[types.Root]bool
	anomalies      []*Anomaly
	timings        []ConfirmationTiming
	emptyOrForked  []types.Slot
	skipped        uint64

	processedSlots uint64
	countedSlot    types.Slot
	hasCounted     bool
}

// NewAnalyzer returns an analyzer for one threshold pair.
func NewAnalyzer(cfg *params.ChainConfig, th Thresholds) (*Analyzer, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{
		cfg:       cfg,
		engine:    NewEngine(cfg),
		th:        th,
		confirmed: make(map[types.Root]confirmedRecord),
		anomalous: make(map[types.Root]bool),
	}, nil
}

// Thresholds returns the pair the analyzer evaluates under.
func (a *Analyzer) Thresholds() Thresholds {
	return a.th
}

// Process replays one snapshot. Snapshots must arrive in non-decreasing slot
// order; a snapshot below the last processed slot yields ErrUnorderedSnapshot
// and no verdicts. A snapshot whose block set cannot form a valid tree is
// counted, logged and skipped, wrapping forkchoice.ErrMalformedView; the
// analyzer remains usable for the following snapshots either way.
func (a *Analyzer) Process(ctx context.Context, snap *snapshot.Snapshot) error {
	ctx, span := trace.StartSpan(ctx, "confirmation.Analyzer.Process")
	defer span.End()

	if a.hasProcessed && snap.Slot < a.lastSlot {
		return errors.Wrapf(ErrUnorderedSnapshot,
			"snapshot at slot %d after slot %d", snap.Slot, a.lastSlot)
	}
	gap := a.hasProcessed && (snap.Slot > a.lastSlot+1 || a.missedView)

	view, err := forkchoice.NewView(snap, a.cfg)
	if err != nil {
		a.skipped++
		a.missedView = true
		a.lastSlot = snap.Slot
		a.hasProcessed = true
		snapshotsSkipped.Inc()
		log.WithError(err).WithField("slot", snap.Slot).Warn("Skipping malformed snapshot")
		return errors.Wrapf(err, "snapshot at slot %d", snap.Slot)
	}
	a.missedView = false

	newConfirmed, err := a.evaluateChain(ctx, view)
	if err != nil {
		return err
	}
	if err := a.recordConfirmations(view, snap, newConfirmed, gap); err != nil {
		return err
	}
	if err := a.detectAnomalies(view); err != nil {
		return err
	}
	if (uint64(snap.Slot)+1)%a.cfg.SlotsPerEpoch == 0 {
		cpRoot, ok, err := a.engine.FFGConfirmedCheckpoint(ctx, view, a.th)
		if err != nil {
			return err
		}
		if ok {
			a.prior.FFGConfirmedCheckpoint = cpRoot
		} else {
			a.prior.FFGConfirmedCheckpoint = types.Root{}
		}
	}

	if !a.hasCounted || snap.Slot != a.countedSlot {
		a.processedSlots++
		a.countedSlot = snap.Slot
		a.hasCounted = true
	}
	a.lastSlot = snap.Slot
	a.hasProcessed = true
	return nil
}

// evaluateChain walks from the head toward the settled chain, evaluating each
// block until one confirms. It returns the newest confirmed root, or the zero
// root when nothing on the chain confirmed.
func (a *Analyzer) evaluateChain(ctx context.Context, view *forkchoice.View) (types.Root, error) {
	cur := view.Head()
	for {
		settled, err := a.engine.isSettled(view, cur, a.prior)
		if err != nil {
			return types.Root{}, err
		}
		if settled {
			return types.Root{}, nil
		}
		v, err := a.engine.Evaluate(ctx, view, cur, a.th, a.prior)
		if err != nil {
			return types.Root{}, err
		}
		a.verdicts = append(a.verdicts, v)
		if v.Confirmed {
			v.ConfirmedAt = view.Slot()
			verdictsEvaluated.WithLabelValues("true").Inc()
			return cur, nil
		}
		verdictsEvaluated.WithLabelValues("false").Inc()
		parent, ok, err := view.ParentRoot(cur)
		if err != nil {
			return types.Root{}, err
		}
		if !ok {
			return types.Root{}, nil
		}
		cur = parent
	}
}

// recordConfirmations advances the confirmed head and books every block that
// became confirmed with this snapshot: its confirmation time, and any empty or
// forked slots between it and its parent. Timings are suppressed after a slot
// gap in the snapshot stream, since the block may have confirmed during the
// unobserved slots.
func (a *Analyzer) recordConfirmations(view *forkchoice.View, snap *snapshot.Snapshot, newConfirmed types.Root, gap bool) error {
	if newConfirmed.IsZero() {
		return nil
	}
	newSlot, err := view.BlockSlot(newConfirmed)
	if err != nil {
		return err
	}
	if a.hasProcessed && newSlot < a.prior.ConfirmedSlot {
		log.WithField("slot", snap.Slot).WithField("root", newConfirmed).
			Warn("Confirmation head went backwards")
		return nil
	}

	// Chain from the new confirmed head down to the previous one, oldest
	// first. Every block on it confirmed no later than this snapshot.
	var chain []types.Root
	cur := newConfirmed
	for {
		if _, seen := a.confirmed[cur]; seen {
			break
		}
		settled, err := a.engine.isSettled(view, cur, a.prior)
		if err != nil {
			return err
		}
		if settled && cur != newConfirmed {
			break
		}
		chain = append(chain, cur)
		parent, ok, err := view.ParentRoot(cur)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		cur = parent
	}
	for i := len(chain) - 1; i >= 0; i-- {
		root := chain[i]
		blockSlot, err := view.BlockSlot(root)
		if err != nil {
			return err
		}
		a.confirmed[root] = confirmedRecord{slot: blockSlot, at: snap.Slot}
		a.confirmedOrder = append(a.confirmedOrder, root)
		if !gap {
			secs := uint64(snap.Slot-blockSlot)*a.cfg.SecondsPerSlot + snap.TimeInSlot
			a.timings = append(a.timings, ConfirmationTiming{Root: root, Slot: blockSlot, Seconds: secs})
		}
		parent, ok, err := view.ParentRoot(root)
		if err != nil {
			return err
		}
		if ok {
			parentSlot, err := view.BlockSlot(parent)
			if err != nil {
				return err
			}
			for s := parentSlot + 1; s < blockSlot; s++ {
				a.emptyOrForked = append(a.emptyOrForked, s)
			}
		}
	}

	a.prior.ConfirmedRoot = newConfirmed
	a.prior.ConfirmedSlot = newSlot
	return nil
}

// detectAnomalies re-checks every block the analyzer ever confirmed against
// the current view. A confirmed block missing from the view is fine when it
// sits at or below the finalized slot, where views legitimately prune; any
// other disappearance, or presence off the head's chain, is an anomaly.
// Each root is reported at most once, in the order blocks were confirmed.
func (a *Analyzer) detectAnomalies(view *forkchoice.View) error {
	head := view.Head()
	for _, root := range a.confirmedOrder {
		rec := a.confirmed[root]
		if a.anomalous[root] {
			continue
		}
		if !view.HasBlock(root) {
			if rec.slot <= view.FinalizedSlot() {
				continue
			}
			a.reportAnomaly(root, rec, view.Slot())
			continue
		}
		canonical, err := view.IsAncestor(root, head)
		if err != nil {
			return err
		}
		if !canonical {
			a.reportAnomaly(root, rec, view.Slot())
		}
	}
	return nil
}

func (a *Analyzer) reportAnomaly(root types.Root, rec confirmedRecord, observedAt types.Slot) {
	a.anomalous[root] = true
	a.anomalies = append(a.anomalies, &Anomaly{
		Root:        root,
		Slot:        rec.slot,
		ConfirmedAt: rec.at,
		ObservedAt:  observedAt,
	})
	anomaliesObserved.Inc()
	log.WithField("root", root).WithField("slot", rec.slot).
		WithField("confirmedAt", rec.at).WithField("observedAt", observedAt).
		Error("Confirmed block left the canonical chain")
}

// Verdicts returns every verdict produced so far, in evaluation order.
func (a *Analyzer) Verdicts() []*Verdict {
	return a.verdicts
}

// Anomalies returns every confirmed-then-reorged block observed so far.
func (a *Analyzer) Anomalies() []*Anomaly {
	return a.anomalies
}

// ConfirmationTimes returns the per-block confirmation timings, ordered by
// block slot within each snapshot.
func (a *Analyzer) ConfirmationTimes() []ConfirmationTiming {
	return a.timings
}

// EmptyOrForkedSlots returns the slots with no block on the confirmed chain.
func (a *Analyzer) EmptyOrForkedSlots() []types.Slot {
	return a.emptyOrForked
}

// SkippedSnapshots returns how many snapshots were dropped as malformed.
func (a *Analyzer) SkippedSnapshots() uint64 {
	return a.skipped
}

// ProcessedSlots returns the number of distinct slots for which at least one
// snapshot was successfully replayed.
func (a *Analyzer) ProcessedSlots() uint64 {
	return a.processedSlots
}

// ConfirmedHead returns the current confirmed head and its slot.
func (a *Analyzer) ConfirmedHead() (types.Root, types.Slot) {
	return a.prior.ConfirmedRoot, a.prior.ConfirmedSlot
}
