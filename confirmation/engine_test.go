package confirmation

import (
	"context"
	"os"
	"testing"

	"github.com/forkwatchlabs/forkwatch/config/params"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/forkchoice"
	"github.com/forkwatchlabs/forkwatch/snapshot"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	params.OverrideBeaconConfig(params.MinimalTestConfig())
	os.Exit(m.Run())
}

func root(b byte) types.Root {
	var r types.Root
	r[0] = b
	return r
}

func block(slot types.Slot, r, parent types.Root) snapshot.BlockNode {
	return snapshot.BlockNode{Slot: slot, Root: r, ParentRoot: parent}
}

func vote(idx types.ValidatorIndex, slot types.Slot, head types.Root) snapshot.Vote {
	return snapshot.Vote{ValidatorIndex: idx, Slot: slot, HeadRoot: head}
}

// testSnapshot is a three-block chain observed at slot 12 with a committee of
// 4 over 8-slot epochs, so the full validator set weighs 32. Thirty of the 32
// validators vote for the head.
//
//	b0 (slot 0) <- b1 (slot 8) <- b2 (slot 9)
func testSnapshot(votes int) *snapshot.Snapshot {
	snap := &snapshot.Snapshot{
		Slot:                12,
		TimeInSlot:          3,
		HeadRoot:            root(3),
		JustifiedCheckpoint: snapshot.Checkpoint{Epoch: 0, Root: root(1)},
		FinalizedCheckpoint: snapshot.Checkpoint{Epoch: 0, Root: root(1)},
		CommitteeSize:       4,
		Blocks: []snapshot.BlockNode{
			block(0, root(1), types.Root{}),
			block(8, root(2), root(1)),
			block(9, root(3), root(2)),
		},
	}
	for i := 0; i < votes; i++ {
		snap.Votes = append(snap.Votes, vote(types.ValidatorIndex(i), 10, root(3)))
	}
	return snap
}

func testView(t *testing.T, snap *snapshot.Snapshot) *forkchoice.View {
	view, err := forkchoice.NewView(snap, params.MinimalTestConfig())
	require.NoError(t, err)
	return view
}

var testThresholds = Thresholds{Byzantine: 0.1, Slashing: 0.05}

func TestEvaluate_ConfirmsSupportedChain(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())
	view := testView(t, testSnapshot(30))

	// The chain walk takes the minimum margin: b2's own window covers 4
	// slots of committee weight (ceil(4*32/8) = 16), b1's spans the epoch
	// boundary for an estimate of 31, and the FFG checkpoint inequality
	// leaves a margin of 19. b1's step binds at 30 - floor(0.6*31) = 12.
	v, err := e.Evaluate(context.Background(), view, root(3), testThresholds, PriorState{})
	require.NoError(t, err)
	require.Equal(t, true, v.Confirmed)
	require.Equal(t, int64(12), v.Margin)
	require.Equal(t, types.Slot(9), v.Slot)
	require.Equal(t, types.Slot(12), v.EvaluatedAt)
	require.Equal(t, types.Gwei(0), v.Deficit)

	v, err = e.Evaluate(context.Background(), view, root(2), testThresholds, PriorState{})
	require.NoError(t, err)
	require.Equal(t, true, v.Confirmed)
	require.Equal(t, int64(12), v.Margin)
}

func TestEvaluate_SettledBlockHasFullMargin(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())
	view := testView(t, testSnapshot(30))

	v, err := e.Evaluate(context.Background(), view, root(1), testThresholds, PriorState{})
	require.NoError(t, err)
	require.Equal(t, true, v.Confirmed)
	require.Equal(t, int64(32), v.Margin)

	// A previously confirmed head settles its ancestors the same way.
	v, err = e.Evaluate(context.Background(), view, root(2), testThresholds,
		PriorState{ConfirmedRoot: root(3), ConfirmedSlot: 9})
	require.NoError(t, err)
	require.Equal(t, true, v.Confirmed)
	require.Equal(t, int64(32), v.Margin)
}

func TestEvaluate_BoundaryDoesNotConfirm(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())

	// 18 votes put b1's inequality exactly on its boundary: the margin is
	// zero and strictness denies confirmation.
	v, err := e.Evaluate(context.Background(), testView(t, testSnapshot(18)), root(3), testThresholds, PriorState{})
	require.NoError(t, err)
	require.Equal(t, false, v.Confirmed)
	require.Equal(t, int64(0), v.Margin)
	require.Equal(t, types.Gwei(1), v.Deficit)

	// One more vote crosses it.
	v, err = e.Evaluate(context.Background(), testView(t, testSnapshot(19)), root(3), testThresholds, PriorState{})
	require.NoError(t, err)
	require.Equal(t, true, v.Confirmed)
	require.Equal(t, int64(1), v.Margin)
}

func TestEvaluate_MarginMonotoneInByzantineThreshold(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())
	view := testView(t, testSnapshot(30))

	prev := int64(1) << 62
	confirmed := true
	for _, b := range []float64{0.05, 0.1, 0.2, 0.3} {
		v, err := e.Evaluate(context.Background(), view, root(3), Thresholds{Byzantine: b, Slashing: 0.05}, PriorState{})
		require.NoError(t, err)
		if v.Margin > prev {
			t.Fatalf("margin increased from %d to %d at byzantine threshold %v", prev, v.Margin, b)
		}
		if v.Confirmed && !confirmed {
			t.Fatalf("block confirmed at byzantine threshold %v but not at a lower one", b)
		}
		prev, confirmed = v.Margin, v.Confirmed
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())
	view := testView(t, testSnapshot(30))

	first, err := e.Evaluate(context.Background(), view, root(3), testThresholds, PriorState{})
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background(), view, root(3), testThresholds, PriorState{})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEvaluate_OffChainCandidate(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())

	snap := testSnapshot(30)
	snap.Blocks = append(snap.Blocks, block(10, root(4), root(2)))
	view := testView(t, snap)
	require.Equal(t, root(3), view.Head())

	_, err := e.Evaluate(context.Background(), view, root(4), testThresholds, PriorState{})
	require.ErrorIs(t, err, ErrInapplicableCandidate)

	_, err = e.Evaluate(context.Background(), view, root(9), testThresholds, PriorState{})
	require.ErrorIs(t, err, ErrInapplicableCandidate)
}

func TestEvaluate_InvalidThresholds(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())
	view := testView(t, testSnapshot(30))

	for _, th := range []Thresholds{
		{Byzantine: 0, Slashing: 0},
		{Byzantine: 1, Slashing: 0},
		{Byzantine: 0.1, Slashing: -0.1},
		{Byzantine: 0.1, Slashing: 1},
	} {
		_, err := e.Evaluate(context.Background(), view, root(3), th, PriorState{})
		require.ErrorIs(t, err, ErrInvalidThresholds)
	}
}

func TestEvaluate_NoVotesFallsBackToNodeWeights(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())

	snap := testSnapshot(0)
	for i := range snap.Blocks {
		snap.Blocks[i].Weight = 30
	}
	view := testView(t, snap)

	v, err := e.Evaluate(context.Background(), view, root(3), testThresholds, PriorState{})
	require.NoError(t, err)
	require.Equal(t, true, v.Confirmed)
	require.Equal(t, int64(12), v.Margin)
}

func TestEvaluate_NoAttestationsDoesNotConfirm(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())
	view := testView(t, testSnapshot(0))

	// With zero support everywhere, every non-settled block fails its LMD
	// inequality. b1's window binds both candidates at 0 - floor(0.6*31) = -18.
	for _, r := range []types.Root{root(3), root(2)} {
		v, err := e.Evaluate(context.Background(), view, r, testThresholds, PriorState{})
		require.NoError(t, err)
		require.Equal(t, false, v.Confirmed)
		require.Equal(t, int64(-18), v.Margin)
		require.Equal(t, types.Gwei(19), v.Deficit)
	}
}

func TestEvaluate_PreviousEpochCandidate(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())

	// Observed at slot 16 the chain's blocks are in the previous epoch. The
	// head's checkpoint b1 must be justified, FFG-confirmed at the end of its
	// epoch, and backed by a finalized checkpoint one epoch further down.
	snap := testSnapshot(0)
	snap.Slot = 16
	snap.JustifiedCheckpoint = snapshot.Checkpoint{Epoch: 1, Root: root(2)}
	for i := 0; i < 30; i++ {
		snap.Votes = append(snap.Votes, vote(types.ValidatorIndex(i), 14, root(3)))
	}
	view := testView(t, snap)

	v, err := e.Evaluate(context.Background(), view, root(2), testThresholds,
		PriorState{FFGConfirmedCheckpoint: root(2)})
	require.NoError(t, err)
	require.Equal(t, true, v.Confirmed)
	require.Equal(t, int64(11), v.Margin)

	// Without the carried FFG confirmation the gate fails regardless of
	// support.
	v, err = e.Evaluate(context.Background(), view, root(2), testThresholds, PriorState{})
	require.NoError(t, err)
	require.Equal(t, false, v.Confirmed)
	require.Equal(t, int64(0), v.Margin)
}

func TestEvaluate_FinalizedPreviousEpochNeedsOnlyLMD(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())

	snap := testSnapshot(0)
	snap.Slot = 16
	snap.JustifiedCheckpoint = snapshot.Checkpoint{Epoch: 1, Root: root(2)}
	snap.FinalizedCheckpoint = snapshot.Checkpoint{Epoch: 1, Root: root(2)}
	for i := 0; i < 30; i++ {
		snap.Votes = append(snap.Votes, vote(types.ValidatorIndex(i), 14, root(3)))
	}
	view := testView(t, snap)

	// b2 sits above the finalized checkpoint in the previous epoch, so only
	// its LMD support matters. Its window [9, 16] crosses the epoch boundary
	// and prorates to 29, leaving 30 - floor(0.6*29) = 13.
	v, err := e.Evaluate(context.Background(), view, root(3), testThresholds, PriorState{})
	require.NoError(t, err)
	require.Equal(t, true, v.Confirmed)
	require.Equal(t, int64(13), v.Margin)
}

func TestEvaluate_OlderThanPreviousEpoch(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())

	snap := testSnapshot(0)
	snap.Slot = 24
	for i := 0; i < 30; i++ {
		snap.Votes = append(snap.Votes, vote(types.ValidatorIndex(i), 22, root(3)))
	}
	view := testView(t, snap)

	v, err := e.Evaluate(context.Background(), view, root(2), testThresholds, PriorState{})
	require.NoError(t, err)
	require.Equal(t, false, v.Confirmed)
	require.Equal(t, int64(0), v.Margin)
}

func TestFFGConfirmedCheckpoint(t *testing.T) {
	e := NewEngine(params.MinimalTestConfig())

	snap := testSnapshot(30)
	snap.Slot = 15
	view := testView(t, snap)

	cp, ok, err := e.FFGConfirmedCheckpoint(context.Background(), view, testThresholds)
	require.NoError(t, err)
	require.Equal(t, true, ok)
	require.Equal(t, root(2), cp)

	// With no support the checkpoint cannot be FFG confirmed.
	empty := testSnapshot(2)
	empty.Slot = 15
	view = testView(t, empty)
	_, ok, err = e.FFGConfirmedCheckpoint(context.Background(), view, testThresholds)
	require.NoError(t, err)
	require.Equal(t, false, ok)
}
