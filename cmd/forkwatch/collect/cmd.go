// Package collect implements the command that runs the snapshot collector
// against a live beacon node.
package collect

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forkwatchlabs/forkwatch/api/client"
	"github.com/forkwatchlabs/forkwatch/api/client/beacon"
	"github.com/forkwatchlabs/forkwatch/collector"
	"github.com/forkwatchlabs/forkwatch/config/params"
	"github.com/forkwatchlabs/forkwatch/db/kv"
	"github.com/forkwatchlabs/forkwatch/monitoring/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var collectFlags = struct {
	BeaconNodeHost  string
	Timeout         string
	DataDir         string
	PollInterval    string
	ChainConfigFile string
	MonitoringAddr  string
}{}

var Commands = []*cli.Command{
	{
		Name:   "collect",
		Usage:  "poll a beacon node's fork choice endpoint and archive timestamped snapshots",
		Action: cliActionCollect,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "beacon-node-host",
				Usage:       "host:port for beacon node connection",
				Destination: &collectFlags.BeaconNodeHost,
				Value:       "localhost:3500",
			},
			&cli.StringFlag{
				Name:        "http-timeout",
				Usage:       "timeout for http requests made to beacon-node-host (uses duration format, ex: 2m31s)",
				Destination: &collectFlags.Timeout,
				Value:       "2m",
			},
			&cli.StringFlag{
				Name:        "datadir",
				Usage:       "directory for the snapshot database",
				Destination: &collectFlags.DataDir,
				Value:       "./forkwatch-data",
			},
			&cli.StringFlag{
				Name:        "poll-interval",
				Usage:       "how often to poll the node (uses duration format); defaults to one slot",
				Destination: &collectFlags.PollInterval,
			},
			&cli.StringFlag{
				Name:        "chain-config-file",
				Usage:       "path to a yaml file with chain config values; defaults to mainnet",
				Destination: &collectFlags.ChainConfigFile,
			},
			&cli.StringFlag{
				Name:        "monitoring-address",
				Usage:       "host:port to serve prometheus metrics on; empty disables monitoring",
				Destination: &collectFlags.MonitoringAddr,
				Value:       ":8080",
			},
		},
	},
}

func cliActionCollect(_ *cli.Context) error {
	f := collectFlags
	if f.ChainConfigFile != "" {
		if _, err := params.LoadChainConfigFile(f.ChainConfigFile); err != nil {
			return err
		}
	}
	cfg := params.BeaconConfig()

	timeout, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return err
	}
	var pollInterval time.Duration
	if f.PollInterval != "" {
		pollInterval, err = time.ParseDuration(f.PollInterval)
		if err != nil {
			return err
		}
	}

	node, err := beacon.NewClient(f.BeaconNodeHost, client.WithTimeout(timeout))
	if err != nil {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := collector.NewService(ctx, &collector.Config{
		Client:       node,
		DB:           db,
		ChainConfig:  cfg,
		PollInterval: pollInterval,
	})
	if err != nil {
		return err
	}
	svc.Start()

	var monitoring *prometheus.Service
	if f.MonitoringAddr != "" {
		monitoring = prometheus.NewService(f.MonitoringAddr, func() (string, error) {
			return "collector", svc.Status()
		})
		monitoring.Start()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("Shutting down")
	if monitoring != nil {
		if err := monitoring.Stop(); err != nil {
			log.WithError(err).Error("Could not stop monitoring service")
		}
	}
	return svc.Stop()
}
