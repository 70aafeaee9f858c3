// Package confirmation implements an early confirmation rule for a
// GHOST-plus-FFG fork choice: it decides whether a block is guaranteed to
// remain canonical under assumed bounds on adversarial and slashable voting
// weight, ahead of protocol finality.
//
// The rule combines a per-block LMD support inequality, applied along the
// whole chain down to the last settled block, with an FFG support inequality
// for the candidate's epoch checkpoint. All comparisons are strict: a verdict
// on the boundary does not confirm.
package confirmation

import (
	"context"
	"math/big"

	"github.com/forkwatchlabs/forkwatch/config/params"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/forkchoice"
	mathutil "github.com/forkwatchlabs/forkwatch/math"
	"github.com/forkwatchlabs/forkwatch/snapshot"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// PriorState carries the cross-snapshot inputs of the rule. The engine itself
// is stateless; the analyzer threads these through between snapshots.
type PriorState struct {
	// ConfirmedRoot and ConfirmedSlot identify the most recent confirmed
	// head. Blocks at or below it are settled and confirm trivially.
	ConfirmedRoot types.Root
	ConfirmedSlot types.Slot
	// FFGConfirmedCheckpoint is the checkpoint whose FFG inequality held at
	// the last slot of the previous epoch, if any. Previous-epoch candidates
	// rely on it.
	FFGConfirmedCheckpoint types.Root
}

// Engine evaluates the confirmation rule. Evaluate is a pure function of its
// arguments, so one engine may be shared freely across goroutines.
type Engine struct {
	cfg *params.ChainConfig
}

// NewEngine returns an engine using the given chain config.
func NewEngine(cfg *params.ChainConfig) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) toEpoch(s types.Slot) types.Epoch {
	return types.Epoch(uint64(s) / e.cfg.SlotsPerEpoch)
}

func (e *Engine) epochStart(ep types.Epoch) types.Slot {
	return types.Slot(uint64(ep) * e.cfg.SlotsPerEpoch)
}

// Evaluate decides whether the candidate is confirmed at the view's slot
// under the given thresholds. The candidate must be an ancestor-or-self of
// the view's head; probing an abandoned branch yields ErrInapplicableCandidate.
func (e *Engine) Evaluate(ctx context.Context, view *forkchoice.View, candidate types.Root, th Thresholds, prior PriorState) (*Verdict, error) {
	_, span := trace.StartSpan(ctx, "confirmation.Evaluate")
	defer span.End()

	if err := th.Validate(); err != nil {
		return nil, err
	}
	if !view.HasBlock(candidate) {
		return nil, errors.Wrapf(ErrInapplicableCandidate, "unknown candidate %s at slot %d", candidate, view.Slot())
	}
	head := view.Head()
	onChain, err := view.IsAncestor(candidate, head)
	if err != nil {
		return nil, err
	}
	if !onChain {
		return nil, errors.Wrapf(ErrInapplicableCandidate,
			"candidate %s is not an ancestor of head %s at slot %d", candidate, head, view.Slot())
	}
	blockSlot, err := view.BlockSlot(candidate)
	if err != nil {
		return nil, err
	}

	confirmed, margin, err := e.confirm(view, candidate, th, prior)
	if err != nil {
		return nil, err
	}
	v := &Verdict{
		Root:        candidate,
		Slot:        blockSlot,
		EvaluatedAt: view.Slot(),
		Thresholds:  th,
		Confirmed:   confirmed,
		Margin:      margin,
	}
	if !confirmed {
		// Strict inequality: crossing the boundary needs one unit more than
		// the shortfall.
		v.Deficit = types.Gwei(1 - margin)
	}
	return v, nil
}

func (e *Engine) confirm(view *forkchoice.View, candidate types.Root, th Thresholds, prior PriorState) (bool, int64, error) {
	settled, err := e.isSettled(view, candidate, prior)
	if err != nil {
		return false, 0, err
	}
	if settled {
		// Finalized or previously confirmed chain: fully committed.
		return true, int64(view.TotalActiveWeight()), nil
	}

	blockSlot, err := view.BlockSlot(candidate)
	if err != nil {
		return false, 0, err
	}
	curEpoch := e.toEpoch(view.Slot())
	blockEpoch := e.toEpoch(blockSlot)

	switch {
	case blockEpoch == curEpoch:
		return e.confirmCurrentEpoch(view, candidate, th, prior, curEpoch)
	case blockEpoch+1 == curEpoch:
		return e.confirmPreviousEpoch(view, candidate, th, prior, curEpoch)
	default:
		// Unconfirmed blocks older than the previous epoch can no longer
		// gather the checkpoint evidence the rule needs.
		return false, 0, nil
	}
}

// isSettled reports whether the candidate is on the already-settled chain:
// ancestor-or-self of the finalized checkpoint block or of the previously
// confirmed head.
func (e *Engine) isSettled(view *forkchoice.View, candidate types.Root, prior PriorState) (bool, error) {
	for _, root := range []types.Root{view.FinalizedCheckpoint().Root, prior.ConfirmedRoot} {
		if root.IsZero() || !view.HasBlock(root) {
			continue
		}
		ok, err := view.IsAncestor(candidate, root)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// confirmCurrentEpoch requires the previous epoch's checkpoint to be
// justified (or already finalized), LMD confirmation along the chain, and the
// FFG inequality for the current epoch's checkpoint.
func (e *Engine) confirmCurrentEpoch(view *forkchoice.View, candidate types.Root, th Thresholds, prior PriorState, curEpoch types.Epoch) (bool, int64, error) {
	var prevBoundary types.Slot
	if curEpoch > 0 {
		prevBoundary = e.epochStart(curEpoch - 1)
	}
	secondCp, err := view.Ancestor(candidate, prevBoundary)
	if err != nil {
		return false, 0, err
	}
	gate := secondCp == view.JustifiedCheckpoint().Root || secondCp == view.FinalizedCheckpoint().Root

	lmdOK, lmdMargin, err := e.lmdConfirmed(view, candidate, th, prior)
	if err != nil {
		return false, 0, err
	}
	_, ffgMargin, err := e.ffgMargin(view, candidate, th)
	if err != nil {
		return false, 0, err
	}
	ffgOK := ffgMargin > 0

	margin := min64(lmdMargin, ffgMargin)
	confirmed := gate && lmdOK && ffgOK
	if !gate {
		margin = min64(margin, 0)
	}
	if lmdOK && !ffgOK {
		log.WithField("root", candidate).WithField("slot", view.Slot()).
			Debug("Block is LMD confirmed but not FFG confirmed")
	}
	return confirmed, margin, nil
}

// confirmPreviousEpoch handles candidates from the immediately preceding
// epoch. If their epoch checkpoint is already finalized only LMD support
// matters; otherwise the checkpoint must be justified and have been
// FFG-confirmed at the end of its epoch, with the checkpoint one epoch
// further back finalized.
func (e *Engine) confirmPreviousEpoch(view *forkchoice.View, candidate types.Root, th Thresholds, prior PriorState, curEpoch types.Epoch) (bool, int64, error) {
	secondCp, err := view.Ancestor(candidate, e.epochStart(curEpoch-1))
	if err != nil {
		return false, 0, err
	}
	lmdOK, lmdMargin, err := e.lmdConfirmed(view, candidate, th, prior)
	if err != nil {
		return false, 0, err
	}
	if secondCp == view.FinalizedCheckpoint().Root {
		return lmdOK, lmdMargin, nil
	}

	var thirdBoundary types.Slot
	if curEpoch > 1 {
		thirdBoundary = e.epochStart(curEpoch - 2)
	}
	thirdCp, err := view.Ancestor(candidate, thirdBoundary)
	if err != nil {
		return false, 0, err
	}
	gate := secondCp == prior.FFGConfirmedCheckpoint &&
		secondCp == view.JustifiedCheckpoint().Root &&
		thirdCp == view.FinalizedCheckpoint().Root

	margin := lmdMargin
	if !gate {
		margin = min64(margin, 0)
	}
	return gate && lmdOK, margin, nil
}

// lmdConfirmed walks the chain from the candidate down to the last settled
// block, evaluating the one-block LMD inequality at every step. The reported
// margin is the minimum along the walk; confirmation requires every step to
// clear its boundary strictly.
func (e *Engine) lmdConfirmed(view *forkchoice.View, candidate types.Root, th Thresholds, prior PriorState) (bool, int64, error) {
	const unset = int64(1)<<62 - 1
	minMargin := unset
	cur := candidate
	for {
		if cur == view.FinalizedCheckpoint().Root || cur == view.TreeRoot() {
			break
		}
		if !prior.ConfirmedRoot.IsZero() && cur == prior.ConfirmedRoot {
			break
		}
		m, err := e.oneLMDMargin(view, cur, th)
		if err != nil {
			return false, 0, err
		}
		minMargin = min64(minMargin, m)
		parent, ok, err := view.ParentRoot(cur)
		if err != nil {
			return false, 0, err
		}
		if !ok {
			break
		}
		cur = parent
	}
	if minMargin == unset {
		// Candidate already sits on the settled chain.
		return true, int64(view.TotalActiveWeight()), nil
	}
	return minMargin > 0, minMargin, nil
}

// oneLMDMargin evaluates the single-block safety inequality
//
//	support/maxSupport > 1/2 · (1 + boost/maxSupport) + β
//
// in integer arithmetic, where maxSupport is the committee weight that could
// have voted since the parent's slot. A competing branch can begin right
// after the parent, so the window opens at parent.slot+1 even when slots in
// between are empty, and it includes the current slot because evaluation can
// happen after the slot's block was proposed. Returns the support margin in
// Gwei; strictly positive means the inequality holds.
func (e *Engine) oneLMDMargin(view *forkchoice.View, block types.Root, th Thresholds) (int64, error) {
	parent, ok, err := view.ParentRoot(block)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.Wrapf(forkchoice.ErrUnknownBlock, "block %s has no parent in view", block)
	}
	parentSlot, err := view.BlockSlot(parent)
	if err != nil {
		return 0, err
	}

	maxSupport := e.committeeWeightBetween(view, parentSlot+1, view.Slot())
	boost := e.proposerScore(view)
	support, err := view.Weight(block)
	if err != nil {
		return 0, err
	}
	// Observed fork-choice weights include the proposer boost; the paper's
	// support does not.
	supportNoBoost := int64(support) - int64(boost)

	bp := th.byzantineBP()
	// Strict inequality, scaled to basis points:
	//   10000·supportNoBoost > (5000+bp)·maxSupport + 5000·boost
	rhs := new(big.Int).Mul(new(big.Int).SetUint64(5000+bp), new(big.Int).SetUint64(uint64(maxSupport)))
	rhs.Add(rhs, new(big.Int).Mul(big.NewInt(5000), new(big.Int).SetUint64(uint64(boost))))
	return supportNoBoost - mathutil.FloorDivBig(rhs, 10000).Int64(), nil
}

// ffgMargin evaluates the FFG inequality for the candidate's current-epoch
// checkpoint:
//
//	2/3 · W < ffgSupport − maxAdversarial + (1−β) · remaining
//
// with maxAdversarial = min(β·(W−remaining), σ·W, ffgSupport). Returns the
// checkpoint root and the support margin in Gwei.
func (e *Engine) ffgMargin(view *forkchoice.View, candidate types.Root, th Thresholds) (types.Root, int64, error) {
	curEpoch := e.toEpoch(view.Slot())
	cpRoot, err := view.Ancestor(candidate, e.epochStart(curEpoch))
	if err != nil {
		return types.Root{}, 0, err
	}
	support, err := view.CheckpointSupport(snapshot.Checkpoint{Epoch: curEpoch, Root: cpRoot})
	if err != nil {
		return types.Root{}, 0, err
	}
	boost := e.proposerScore(view)
	ffg := int64(support) - int64(boost)

	w := uint64(view.TotalActiveWeight())
	remSlots := e.cfg.SlotsPerEpoch - uint64(view.Slot())%e.cfg.SlotsPerEpoch - 1
	rem := remSlots * uint64(view.CommitteeWeight())

	bp := th.byzantineBP()
	sbp := th.slashingBP()
	var ffgCap uint64
	if ffg > 0 {
		ffgCap = uint64(ffg)
	}
	maxAdv := mathutil.Min(
		mathutil.MulDivFloor(bp, w-rem, 10000),
		mathutil.Min(mathutil.MulDivFloor(sbp, w, 10000), ffgCap),
	)

	// Strict inequality, scaled:
	//   30000·ffg > 20000·W + 30000·maxAdv − 3·(10000−bp)·remaining
	t := new(big.Int).Mul(big.NewInt(20000), new(big.Int).SetUint64(w))
	t.Add(t, new(big.Int).Mul(big.NewInt(30000), new(big.Int).SetUint64(maxAdv)))
	sub := new(big.Int).Mul(new(big.Int).SetUint64(3*(10000-bp)), new(big.Int).SetUint64(rem))
	t.Sub(t, sub)
	return cpRoot, ffg - mathutil.FloorDivBig(t, 30000).Int64(), nil
}

// FFGConfirmedCheckpoint evaluates the FFG inequality for the current
// epoch's checkpoint on the head's chain. The analyzer calls this at the last
// slot of an epoch to carry the checkpoint into the next epoch's
// previous-epoch confirmations.
func (e *Engine) FFGConfirmedCheckpoint(ctx context.Context, view *forkchoice.View, th Thresholds) (types.Root, bool, error) {
	_, span := trace.StartSpan(ctx, "confirmation.FFGConfirmedCheckpoint")
	defer span.End()
	cpRoot, margin, err := e.ffgMargin(view, view.Head(), th)
	if err != nil {
		return types.Root{}, false, err
	}
	return cpRoot, margin > 0, nil
}

// committeeWeightBetween estimates the total committee weight between start
// and end, inclusive of both. Ranges covering a whole epoch count the full
// active weight; ranges inside one epoch are pro-rated exactly; ranges
// spanning a boundary without covering an epoch are pro-rated per epoch and
// inflated by the configured adjustment factor, since committee sizes vary
// across the boundary.
func (e *Engine) committeeWeightBetween(view *forkchoice.View, start, end types.Slot) types.Gwei {
	if start > end {
		return 0
	}
	w := uint64(view.TotalActiveWeight())
	spe := e.cfg.SlotsPerEpoch
	startEpoch := e.toEpoch(start)
	endEpoch := e.toEpoch(end)

	atBoundary := uint64(start)%spe == 0 || uint64(end+1)%spe == 0
	fullSetCovered := endEpoch > startEpoch+1 ||
		(atBoundary && uint64(start)+spe-1 <= uint64(end))
	if fullSetCovered {
		return types.Gwei(w)
	}

	if startEpoch == endEpoch {
		return types.Gwei(mathutil.MulCeilDiv(uint64(end-start+1), w, spe))
	}

	// Spans a boundary without covering a full epoch: the end epoch's
	// committees count in full, the start epoch's pro-rata.
	numEnd := uint64(end)%spe + 1
	remEnd := spe - numEnd
	numStart := spe - uint64(start)%spe

	endWeight := new(big.Int).Mul(new(big.Int).SetUint64(numEnd), new(big.Int).SetUint64(w))
	startWeight := new(big.Int).SetUint64(mathutil.Mul3CeilDiv(numStart, remEnd, w, spe))
	sum := new(big.Int).Add(endWeight, startWeight)
	total := ceilDivBig(sum, spe)
	return types.Gwei(mathutil.MulCeilDiv(total, 1000+e.cfg.CommitteeWeightAdjustmentFactor, 1000))
}

func ceilDivBig(n *big.Int, den uint64) uint64 {
	d := new(big.Int).SetUint64(den)
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Uint64()
}

// proposerScore is the proposer boost weight: a configured percentage of one
// slot's share of the total active weight.
func (e *Engine) proposerScore(view *forkchoice.View) types.Gwei {
	w := uint64(view.TotalActiveWeight())
	perSlot := mathutil.CeilDiv(w, e.cfg.SlotsPerEpoch)
	return types.Gwei(mathutil.MulDivFloor(e.cfg.ProposerScoreBoost, perSlot, 100))
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
