// Package graph implements the command that renders one archived snapshot's
// block tree in graphviz dot format.
package graph

import (
	"context"
	"fmt"
	"os"

	"github.com/forkwatchlabs/forkwatch/config/params"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/db/kv"
	"github.com/forkwatchlabs/forkwatch/forkchoice"
	"github.com/forkwatchlabs/forkwatch/io/file"
	"github.com/forkwatchlabs/forkwatch/report"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var graphFlags = struct {
	DataDir         string
	Slot            uint64
	ConfirmedRoot   string
	Output          string
	ChainConfigFile string
}{}

var Commands = []*cli.Command{
	{
		Name:   "graph",
		Usage:  "render an archived snapshot's block tree as graphviz dot",
		Action: cliActionGraph,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "datadir",
				Usage:       "directory holding the snapshot database",
				Destination: &graphFlags.DataDir,
				Value:       "./forkwatch-data",
			},
			&cli.Uint64Flag{
				Name:        "slot",
				Usage:       "slot of the snapshot to render; 0 means the highest stored slot",
				Destination: &graphFlags.Slot,
			},
			&cli.StringFlag{
				Name:        "confirmed-root",
				Usage:       "hex root of a confirmed block to highlight",
				Destination: &graphFlags.ConfirmedRoot,
			},
			&cli.StringFlag{
				Name:        "output",
				Usage:       "path for the dot file; empty writes to stdout",
				Destination: &graphFlags.Output,
			},
			&cli.StringFlag{
				Name:        "chain-config-file",
				Usage:       "path to a yaml file with chain config values; defaults to mainnet",
				Destination: &graphFlags.ChainConfigFile,
			},
		},
	},
}

func cliActionGraph(_ *cli.Context) error {
	f := graphFlags
	if f.ChainConfigFile != "" {
		if _, err := params.LoadChainConfigFile(f.ChainConfigFile); err != nil {
			return err
		}
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
	slot := types.Slot(f.Slot)
	if slot == 0 {
		slot, err = db.HighestSlot(ctx)
		if err != nil {
			return errors.Wrap(err, "could not find a snapshot to render")
		}
	}
	snaps, err := db.Snapshots(ctx, slot, slot)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return errors.Errorf("no snapshot stored at slot %d", slot)
	}
	// Multiple polls can land in one slot; render the latest.
	snap := snaps[len(snaps)-1]

	view, err := forkchoice.NewView(snap, params.BeaconConfig())
	if err != nil {
		return err
	}
	var confirmed types.Root
	if f.ConfirmedRoot != "" {
		confirmed, err = types.RootFromHex(f.ConfirmedRoot)
		if err != nil {
			return errors.Wrap(err, "invalid confirmed root")
		}
	}
	out, err := report.RenderTree(view, confirmed)
	if err != nil {
		return err
	}

	if f.Output == "" {
		_, err = fmt.Fprintln(os.Stdout, out)
		return err
	}
	if err := file.WriteFile(f.Output, []byte(out)); err != nil {
		return err
	}
	log.WithField("path", f.Output).WithField("slot", slot).Info("Wrote block tree")
	return nil
}
