package confirmation

import (
	"context"

	"github.com/forkwatchlabs/forkwatch/config/params"
	"github.com/forkwatchlabs/forkwatch/forkchoice"
	"github.com/forkwatchlabs/forkwatch/snapshot"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// SweepPairs expands byzantine and slashing threshold lists into the pairs a
// sweep evaluates, keeping only pairs with slashing <= byzantine. Assuming
// more slashable weight than adversarial weight is vacuous: every slashable
// attacker is adversarial.
func SweepPairs(byzantine, slashing []float64) []Thresholds {
	pairs := make([]Thresholds, 0, len(byzantine)*len(slashing))
	for _, b := range byzantine {
		for _, s := range slashing {
			if s > b {
				continue
			}
			pairs = append(pairs, Thresholds{Byzantine: b, Slashing: s})
		}
	}
	return pairs
}

// RunSweep replays the snapshot stream once per threshold pair, each pair in
// its own goroutine with its own analyzer and fork choice views. The returned
// analyzers are index-aligned with pairs. Malformed snapshots are skipped per
// analyzer; any other processing error aborts the sweep.
func RunSweep(ctx context.Context, cfg *params.ChainConfig, snaps []*snapshot.Snapshot, pairs []Thresholds) ([]*Analyzer, error) {
	analyzers := make([]*Analyzer, len(pairs))
	for i, th := range pairs {
		a, err := NewAnalyzer(cfg, th)
		if err != nil {
			return nil, err
		}
		analyzers[i] = a
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range analyzers {
		a := analyzers[i]
		g.Go(func() error {
			log.WithField("thresholds", a.Thresholds()).
				WithField("snapshots", len(snaps)).Info("Starting sweep worker")
			for _, snap := range snaps {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := a.Process(gctx, snap); err != nil {
					if errors.Is(err, forkchoice.ErrMalformedView) {
						continue
					}
					return errors.Wrapf(err, "thresholds %s", a.Thresholds())
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return analyzers, nil
}
