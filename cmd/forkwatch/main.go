// forkwatch watches a beacon node's fork choice and decides how early blocks
// can be confirmed under explicit adversary assumptions.
package main

import (
	"os"

	"github.com/forkwatchlabs/forkwatch/cmd/forkwatch/analyze"
	"github.com/forkwatchlabs/forkwatch/cmd/forkwatch/collect"
	"github.com/forkwatchlabs/forkwatch/cmd/forkwatch/graph"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var verbosity string

func main() {
	app := &cli.App{
		Name:  "forkwatch",
		Usage: "collect fork choice snapshots from a beacon node and analyze them under a confirmation rule",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "verbosity",
				Usage:       "logging verbosity (trace, debug, info, warn, error)",
				Destination: &verbosity,
				Value:       "info",
			},
		},
		Before: func(_ *cli.Context) error {
			level, err := logrus.ParseLevel(verbosity)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			logrus.SetFormatter(&logrus.TextFormatter{
				FullTimestamp: true,
			})
			return nil
		},
	}
	app.Commands = append(app.Commands, collect.Commands...)
	app.Commands = append(app.Commands, analyze.Commands...)
	app.Commands = append(app.Commands, graph.Commands...)

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err.Error())
	}
}
