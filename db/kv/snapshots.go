package kv

import (
	"context"
	"encoding/binary"

	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/snapshot"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// ErrNotFound is returned when a requested key does not exist in the store.
var ErrNotFound = errors.New("not found in db")

// snapshotKey orders snapshots by slot, then by time in slot, so a bucket
// cursor yields them in observation order.
func snapshotKey(slot types.Slot, timeInSlot uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(slot))
	binary.BigEndian.PutUint64(key[8:], timeInSlot)
	return key
}

// SaveSnapshot persists one observed snapshot. Saving the same slot and time
// twice overwrites the earlier record.
func (s *Store) SaveSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	_, span := trace.StartSpan(ctx, "db.SaveSnapshot")
	defer span.End()
	enc, err := snap.Marshal()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Put(snapshotKey(snap.Slot, snap.TimeInSlot), enc)
	})
}

// Snapshots returns every stored snapshot with slot in [start, end], in
// observation order.
func (s *Store) Snapshots(ctx context.Context, start, end types.Slot) ([]*snapshot.Snapshot, error) {
	_, span := trace.StartSpan(ctx, "db.Snapshots")
	defer span.End()
	var snaps []*snapshot.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(snapshotsBucket).Cursor()
		min := snapshotKey(start, 0)
		for k, v := c.Seek(min); k != nil; k, v = c.Next() {
			slot := types.Slot(binary.BigEndian.Uint64(k[:8]))
			if slot > end {
				break
			}
			snap, err := snapshot.Unmarshal(v)
			if err != nil {
				return errors.Wrapf(err, "corrupt snapshot at slot %d", slot)
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	return snaps, err
}

// HighestSlot returns the slot of the most recent stored snapshot, or
// ErrNotFound when the store is empty.
func (s *Store) HighestSlot(ctx context.Context) (types.Slot, error) {
	_, span := trace.StartSpan(ctx, "db.HighestSlot")
	defer span.End()
	var slot types.Slot
	err := s.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(snapshotsBucket).Cursor().Last()
		if k == nil {
			return ErrNotFound
		}
		slot = types.Slot(binary.BigEndian.Uint64(k[:8]))
		return nil
	})
	return slot, err
}

// SaveGenesisTime persists the chain's genesis unix time, so restarts keep a
// consistent slot clock without re-querying the node.
func (s *Store) SaveGenesisTime(ctx context.Context, genesis uint64) error {
	_, span := trace.StartSpan(ctx, "db.SaveGenesisTime")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		enc := make([]byte, 8)
		binary.BigEndian.PutUint64(enc, genesis)
		return tx.Bucket(metadataBucket).Put(genesisTimeKey, enc)
	})
}

// GenesisTime returns the persisted genesis unix time, or ErrNotFound.
func (s *Store) GenesisTime(ctx context.Context) (uint64, error) {
	_, span := trace.StartSpan(ctx, "db.GenesisTime")
	defer span.End()
	var genesis uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(metadataBucket).Get(genesisTimeKey)
		if enc == nil {
			return ErrNotFound
		}
		genesis = binary.BigEndian.Uint64(enc)
		return nil
	})
	return genesis, err
}

// SaveConfigName records which chain config the stored snapshots were
// collected under.
func (s *Store) SaveConfigName(ctx context.Context, name string) error {
	_, span := trace.StartSpan(ctx, "db.SaveConfigName")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metadataBucket).Put(configNameKey, []byte(name))
	})
}

// ConfigName returns the recorded chain config name, or ErrNotFound.
func (s *Store) ConfigName(ctx context.Context) (string, error) {
	_, span := trace.StartSpan(ctx, "db.ConfigName")
	defer span.End()
	var name string
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(metadataBucket).Get(configNameKey)
		if enc == nil {
			return ErrNotFound
		}
		name = string(enc)
		return nil
	})
	return name, err
}
