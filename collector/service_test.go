package collector

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/forkwatchlabs/forkwatch/api/client/beacon"
	"github.com/forkwatchlabs/forkwatch/config/params"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/snapshot"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	params.OverrideBeaconConfig(params.MinimalTestConfig())
	os.Exit(m.Run())
}

type fakeNode struct {
	genesis       time.Time
	head          types.Root
	dump          *beacon.ForkChoiceDump
	committeeSize uint64
	forkChoiceErr error
}

func (f *fakeNode) Genesis(_ context.Context) (time.Time, error) {
	return f.genesis, nil
}

func (f *fakeNode) HeadRoot(_ context.Context) (types.Root, error) {
	return f.head, nil
}

func (f *fakeNode) ForkChoice(_ context.Context) (*beacon.ForkChoiceDump, error) {
	if f.forkChoiceErr != nil {
		return nil, f.forkChoiceErr
	}
	return f.dump, nil
}

func (f *fakeNode) CommitteeSize(_ context.Context, _ types.Slot) (uint64, error) {
	return f.committeeSize, nil
}

type fakeDB struct {
	snaps      []*snapshot.Snapshot
	genesis    uint64
	configName string
}

func (f *fakeDB) SaveSnapshot(_ context.Context, snap *snapshot.Snapshot) error {
	f.snaps = append(f.snaps, snap)
	return nil
}

func (f *fakeDB) SaveGenesisTime(_ context.Context, genesis uint64) error {
	f.genesis = genesis
	return nil
}

func (f *fakeDB) SaveConfigName(_ context.Context, name string) error {
	f.configName = name
	return nil
}

func testService(t *testing.T, node *fakeNode, db *fakeDB) *Service {
	s, err := NewService(context.Background(), &Config{
		Client:      node,
		DB:          db,
		ChainConfig: params.MinimalTestConfig(),
	})
	require.NoError(t, err)
	return s
}

func TestCollect_PersistsStampedSnapshot(t *testing.T) {
	genesis := time.Unix(1600000000, 0)
	node := &fakeNode{
		genesis: genesis,
		head:    types.Root{3},
		dump: &beacon.ForkChoiceDump{
			JustifiedCheckpoint: snapshot.Checkpoint{Epoch: 1, Root: types.Root{2}},
			FinalizedCheckpoint: snapshot.Checkpoint{Epoch: 0, Root: types.Root{1}},
			Blocks: []snapshot.BlockNode{
				{Slot: 8, Root: types.Root{2}, ParentRoot: types.Root{1}, Weight: 30},
				{Slot: 9, Root: types.Root{3}, ParentRoot: types.Root{2}, Weight: 28},
			},
		},
		committeeSize: 4,
	}
	db := &fakeDB{}
	s := testService(t, node, db)
	s.genesis = genesis
	// 99s after genesis: slot 8 at 12s per slot, 3s into the slot.
	s.now = func() time.Time { return genesis.Add(99 * time.Second) }

	require.NoError(t, s.collect(context.Background()))
	require.Equal(t, 1, len(db.snaps))
	snap := db.snaps[0]
	require.Equal(t, types.Slot(8), snap.Slot)
	require.Equal(t, uint64(3), snap.TimeInSlot)
	require.Equal(t, types.Root{3}, snap.HeadRoot)
	require.Equal(t, uint64(4), snap.CommitteeSize)
	require.Equal(t, 2, len(snap.Blocks))
	require.Equal(t, types.Epoch(1), snap.JustifiedCheckpoint.Epoch)
}

func TestCollect_NodeFailureDoesNotPersist(t *testing.T) {
	node := &fakeNode{
		genesis:       time.Unix(1600000000, 0),
		forkChoiceErr: errors.New("connection refused"),
	}
	db := &fakeDB{}
	s := testService(t, node, db)
	s.genesis = node.genesis

	err := s.collect(context.Background())
	require.NotNil(t, err)
	require.Equal(t, 0, len(db.snaps))
}

func TestStart_PersistsChainMetadata(t *testing.T) {
	node := &fakeNode{
		genesis:       time.Unix(1600000000, 0),
		committeeSize: 4,
		dump:          &beacon.ForkChoiceDump{},
	}
	db := &fakeDB{}
	s := testService(t, node, db)
	s.Start()
	t.Cleanup(func() { require.NoError(t, s.Stop()) })

	require.NoError(t, s.Status())
	require.Equal(t, uint64(1600000000), db.genesis)
	require.Equal(t, "minimal-test", db.configName)
}
