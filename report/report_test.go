package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forkwatchlabs/forkwatch/config/params"
	"github.com/forkwatchlabs/forkwatch/confirmation"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/forkchoice"
	"github.com/forkwatchlabs/forkwatch/snapshot"
	"github.com/stretchr/testify/require"
)

func root(b byte) types.Root {
	var r types.Root
	r[0] = b
	return r
}

func testSnapshot() *snapshot.Snapshot {
	snap := &snapshot.Snapshot{
		Slot:                12,
		TimeInSlot:          3,
		HeadRoot:            root(3),
		JustifiedCheckpoint: snapshot.Checkpoint{Epoch: 0, Root: root(1)},
		FinalizedCheckpoint: snapshot.Checkpoint{Epoch: 0, Root: root(1)},
		CommitteeSize:       4,
		Blocks: []snapshot.BlockNode{
			{Slot: 0, Root: root(1)},
			{Slot: 8, Root: root(2), ParentRoot: root(1)},
			{Slot: 9, Root: root(3), ParentRoot: root(2)},
		},
	}
	for i := 0; i < 30; i++ {
		snap.Votes = append(snap.Votes, snapshot.Vote{
			ValidatorIndex: types.ValidatorIndex(i), Slot: 10, HeadRoot: root(3),
		})
	}
	return snap
}

func runAnalyzer(t *testing.T) *confirmation.Analyzer {
	a, err := confirmation.NewAnalyzer(params.MinimalTestConfig(),
		confirmation.Thresholds{Byzantine: 0.1, Slashing: 0.05})
	require.NoError(t, err)
	require.NoError(t, a.Process(context.Background(), testSnapshot()))
	return a
}

func TestBuildAndWrite(t *testing.T) {
	a := runAnalyzer(t)
	r := Build("minimal-test", []*confirmation.Analyzer{a}, Options{})
	require.Equal(t, 1, len(r.Results))
	res := r.Results[0]
	require.Equal(t, uint64(1), res.ProcessedSlots)
	require.Equal(t, 1, res.Evaluated)
	require.Equal(t, 1, res.Confirmed)
	require.Equal(t, root(3), res.ConfirmedHead)
	require.Equal(t, uint64(2), res.Timings.Count)
	require.Equal(t, uint64(39), res.Timings.Min)
	require.Equal(t, uint64(51), res.Timings.Max)
	require.Equal(t, 0, len(res.Verdicts))

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.WriteFile(context.Background(), path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded := &Report{}
	require.NoError(t, json.Unmarshal(raw, decoded))
	require.Equal(t, "minimal-test", decoded.ConfigName)
	require.Equal(t, r.Results[0].Thresholds, decoded.Results[0].Thresholds)
}

func TestBuild_IncludeVerdicts(t *testing.T) {
	a := runAnalyzer(t)
	r := Build("minimal-test", []*confirmation.Analyzer{a}, Options{IncludeVerdicts: true})
	require.Equal(t, 1, len(r.Results[0].Verdicts))
	require.Equal(t, 2, len(r.Results[0].RawTimings))
}

func TestTimingStats(t *testing.T) {
	timings := []confirmation.ConfirmationTiming{
		{Seconds: 40}, {Seconds: 10}, {Seconds: 30}, {Seconds: 20},
	}
	stats := summarizeTimings(timings)
	require.Equal(t, uint64(4), stats.Count)
	require.Equal(t, uint64(10), stats.Min)
	require.Equal(t, uint64(40), stats.Max)
	require.Equal(t, float64(25), stats.Mean)
	require.Equal(t, uint64(20), stats.P50)
	require.Equal(t, uint64(40), stats.P90)
}

func TestRenderTree(t *testing.T) {
	view, err := forkchoice.NewView(testSnapshot(), params.MinimalTestConfig())
	require.NoError(t, err)

	out, err := RenderTree(view, root(3))
	require.NoError(t, err)
	require.Equal(t, true, strings.Contains(out, "digraph"))
	require.Equal(t, true, strings.Contains(out, "slot: 9"))
	require.Equal(t, true, strings.Contains(out, "green"))
	require.Equal(t, true, strings.Contains(out, "peripheries"))
}
