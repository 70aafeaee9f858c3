// Package collector polls a beacon node's fork choice endpoint on a fixed
// cadence and archives each response as a timestamped snapshot for later
// confirmation analysis.
package collector

import (
	"context"
	"time"

	"github.com/forkwatchlabs/forkwatch/api/client/beacon"
	"github.com/forkwatchlabs/forkwatch/async"
	"github.com/forkwatchlabs/forkwatch/config/params"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/snapshot"
	"github.com/forkwatchlabs/forkwatch/time/slots"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// NodeClient is the subset of the beacon API the collector depends on.
type NodeClient interface {
	Genesis(ctx context.Context) (time.Time, error)
	HeadRoot(ctx context.Context) (types.Root, error)
	ForkChoice(ctx context.Context) (*beacon.ForkChoiceDump, error)
	CommitteeSize(ctx context.Context, slot types.Slot) (uint64, error)
}

// Database is the subset of the kv store the collector writes to.
type Database interface {
	SaveSnapshot(ctx context.Context, snap *snapshot.Snapshot) error
	SaveGenesisTime(ctx context.Context, genesis uint64) error
	SaveConfigName(ctx context.Context, name string) error
}

// Config options for the collector service.
type Config struct {
	Client       NodeClient
	DB           Database
	ChainConfig  *params.ChainConfig
	PollInterval time.Duration
}

// Service drives the polling loop. It implements the Start/Stop/Status
// lifecycle and keeps running through individual failed polls.
type Service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *Config
	genesis  time.Time
	now      func() time.Time
	runError error
}

// NewService initializes the collector from its config.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg.Client == nil || cfg.DB == nil {
		return nil, errors.New("collector requires a node client and a database")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Duration(cfg.ChainConfig.SecondsPerSlot) * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// Start the collector: resolve the chain's genesis time, then poll on the
// configured interval until the context closes.
func (s *Service) Start() {
	genesis, err := s.cfg.Client.Genesis(s.ctx)
	if err != nil {
		s.runError = errors.Wrap(err, "could not determine genesis time")
		log.WithError(err).Error("Could not start collector")
		return
	}
	s.genesis = genesis
	if err := s.cfg.DB.SaveGenesisTime(s.ctx, uint64(genesis.Unix())); err != nil {
		log.WithError(err).Error("Could not persist genesis time")
	}
	if err := s.cfg.DB.SaveConfigName(s.ctx, s.cfg.ChainConfig.ConfigName); err != nil {
		log.WithError(err).Error("Could not persist config name")
	}

	log.WithField("genesisTime", genesis).WithField("interval", s.cfg.PollInterval).
		Info("Starting fork choice collection")
	async.RunEvery(s.ctx, s.cfg.PollInterval, func() {
		if err := s.collect(s.ctx); err != nil {
			collectionErrors.Inc()
			log.WithError(err).Error("Could not collect snapshot")
		}
	})
}

// collect performs one polling round: read the node's fork choice dump, stamp
// it with the wall-clock slot position, and persist it.
func (s *Service) collect(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "collector.collect")
	defer span.End()

	now := s.now()
	curSlot := slots.SinceGenesis(s.genesis, now)

	dump, err := s.cfg.Client.ForkChoice(ctx)
	if err != nil {
		return errors.Wrap(err, "could not fetch fork choice dump")
	}
	head, err := s.cfg.Client.HeadRoot(ctx)
	if err != nil {
		return errors.Wrap(err, "could not fetch head root")
	}
	committeeSize, err := s.cfg.Client.CommitteeSize(ctx, curSlot)
	if err != nil {
		return errors.Wrap(err, "could not fetch committee size")
	}

	snap := &snapshot.Snapshot{
		Slot:                curSlot,
		TimeInSlot:          slots.TimeIntoSlot(s.genesis, now),
		HeadRoot:            head,
		JustifiedCheckpoint: dump.JustifiedCheckpoint,
		FinalizedCheckpoint: dump.FinalizedCheckpoint,
		CommitteeSize:       committeeSize,
		Blocks:              dump.Blocks,
	}
	if err := s.cfg.DB.SaveSnapshot(ctx, snap); err != nil {
		return errors.Wrap(err, "could not persist snapshot")
	}

	snapshotsCollected.Inc()
	observedSlot.Set(float64(curSlot))
	observedBlockCount.Set(float64(len(snap.Blocks)))
	log.WithField("slot", curSlot).WithField("head", head).
		WithField("blocks", len(snap.Blocks)).Debug("Collected snapshot")
	return nil
}

// Stop the collector.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status returns an error when the service failed to start.
func (s *Service) Status() error {
	return s.runError
}
