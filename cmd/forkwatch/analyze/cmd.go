// Package analyze implements the command that sweeps a snapshot archive
// through the confirmation rule.
package analyze

import (
	"context"
	"fmt"
	"os"

	"github.com/forkwatchlabs/forkwatch/config/params"
	"github.com/forkwatchlabs/forkwatch/confirmation"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/db/kv"
	"github.com/forkwatchlabs/forkwatch/report"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var analyzeFlags = struct {
	DataDir         string
	StartSlot       uint64
	EndSlot         uint64
	Output          string
	ChainConfigFile string
	IncludeVerdicts bool
}{}

var Commands = []*cli.Command{
	{
		Name:   "analyze",
		Usage:  "replay archived snapshots through the confirmation rule across a threshold sweep",
		Action: cliActionAnalyze,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "datadir",
				Usage:       "directory holding the snapshot database",
				Destination: &analyzeFlags.DataDir,
				Value:       "./forkwatch-data",
			},
			&cli.Uint64Flag{
				Name:        "start-slot",
				Usage:       "first slot of the analysis window",
				Destination: &analyzeFlags.StartSlot,
			},
			&cli.Uint64Flag{
				Name:        "end-slot",
				Usage:       "last slot of the analysis window; 0 means the highest stored slot",
				Destination: &analyzeFlags.EndSlot,
			},
			&cli.Float64SliceFlag{
				Name:  "byzantine-thresholds",
				Usage: "assumed adversarial weight fractions to sweep, each in (0, 1/3]",
				Value: cli.NewFloat64Slice(0.05, 0.1, 0.15, 0.2, 0.25, 0.3),
			},
			&cli.Float64SliceFlag{
				Name:  "slashing-thresholds",
				Usage: "assumed slashable weight fractions to sweep, each in [0, 1/3]",
				Value: cli.NewFloat64Slice(0.0, 0.05, 0.1),
			},
			&cli.StringFlag{
				Name:        "output",
				Usage:       "path for the json report; empty writes to stdout",
				Destination: &analyzeFlags.Output,
			},
			&cli.StringFlag{
				Name:        "chain-config-file",
				Usage:       "path to a yaml file with chain config values; defaults to mainnet",
				Destination: &analyzeFlags.ChainConfigFile,
			},
			&cli.BoolFlag{
				Name:        "include-verdicts",
				Usage:       "embed every individual verdict in the report",
				Destination: &analyzeFlags.IncludeVerdicts,
			},
		},
	},
}

func cliActionAnalyze(c *cli.Context) error {
	f := analyzeFlags
	if f.ChainConfigFile != "" {
		if _, err := params.LoadChainConfigFile(f.ChainConfigFile); err != nil {
			return err
		}
	}
	cfg := params.BeaconConfig()

	byzantine := c.Float64Slice("byzantine-thresholds")
	slashing := c.Float64Slice("slashing-thresholds")
	if err := validateThresholds(byzantine, slashing); err != nil {
		return err
	}

	db, err := kv.NewKVStore(f.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("Could not close database")
		}
	}()

	ctx := context.Background()
	end := types.Slot(f.EndSlot)
	if end == 0 {
		end, err = db.HighestSlot(ctx)
		if err != nil {
			return errors.Wrap(err, "could not determine analysis window")
		}
	}
	snaps, err := db.Snapshots(ctx, types.Slot(f.StartSlot), end)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return errors.Errorf("no snapshots stored in slots [%d, %d]", f.StartSlot, end)
	}
	log.WithField("snapshots", len(snaps)).WithField("startSlot", f.StartSlot).
		WithField("endSlot", end).Info("Starting threshold sweep")

	pairs := confirmation.SweepPairs(byzantine, slashing)
	analyzers, err := confirmation.RunSweep(ctx, cfg, snaps, pairs)
	if err != nil {
		return err
	}

	r := report.Build(cfg.ConfigName, analyzers, report.Options{IncludeVerdicts: f.IncludeVerdicts})
	if f.Output == "" {
		enc, err := r.Marshal()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(enc))
		return err
	}
	if err := r.WriteFile(ctx, f.Output); err != nil {
		return err
	}
	log.WithField("path", f.Output).Info("Wrote sweep report")
	return nil
}

// The rule's safety argument assumes a minority adversary; beyond one third of
// the weight FFG finality itself is broken, so larger thresholds are rejected
// rather than silently producing vacuous verdicts.
func validateThresholds(byzantine, slashing []float64) error {
	if len(byzantine) == 0 {
		return errors.New("at least one byzantine threshold is required")
	}
	for _, b := range byzantine {
		if b <= 0 || b > 1.0/3 {
			return errors.Errorf("byzantine threshold %v outside (0, 1/3]", b)
		}
	}
	for _, s := range slashing {
		if s < 0 || s > 1.0/3 {
			return errors.Errorf("slashing threshold %v outside [0, 1/3]", s)
		}
	}
	return nil
}
