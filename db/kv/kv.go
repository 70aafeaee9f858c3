// Package kv persists observed fork choice snapshots in a BoltDB key-value
// store, keyed so that a cursor scan replays them in observation order.
package kv

import (
	"os"
	"path"
	"time"

	"github.com/forkwatchlabs/forkwatch/io/file"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	prombbolt "github.com/prysmaticlabs/prombbolt"
	bolt "go.etcd.io/bbolt"
)

const databaseFileName = "forkwatch.db"

// Store is a BoltDB-backed snapshot archive. One collector writes, any number
// of analyzers read.
type Store struct {
	db           *bolt.DB
	databasePath string
}

// NewKVStore initializes a new boltDB key-value store at the directory
// path specified, creates the kv-buckets based on the schema, and stores
// an open connection db object as a property of the Store struct.
func NewKVStore(dirPath string) (*Store, error) {
	if err := file.MkdirAll(dirPath); err != nil {
		return nil, err
	}
	datafile := path.Join(dirPath, databaseFileName)
	boltDB, err := bolt.Open(datafile, 0600, &bolt.Options{Timeout: 1 * time.Second, InitialMmapSize: 10e6})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}

	kv := &Store{
		db:           boltDB,
		databasePath: dirPath,
	}
	if err := kv.db.Update(func(tx *bolt.Tx) error {
		return createBuckets(tx, snapshotsBucket, metadataBucket)
	}); err != nil {
		return nil, err
	}
	err = prometheus.Register(prombbolt.New("forkwatch_db", kv.db))
	return kv, err
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}

// ClearDB removes the previously stored database in the data directory.
func (s *Store) ClearDB() error {
	if _, err := os.Stat(s.databasePath); os.IsNotExist(err) {
		return nil
	}
	prometheus.Unregister(prombbolt.New("forkwatch_db", s.db))
	return os.Remove(path.Join(s.databasePath, databaseFileName))
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	prometheus.Unregister(prombbolt.New("forkwatch_db", s.db))
	return s.db.Close()
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}
