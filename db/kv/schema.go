package kv

var (
	snapshotsBucket = []byte("snapshots")
	metadataBucket  = []byte("metadata")

	// Metadata keys.
	genesisTimeKey = []byte("genesis-time")
	configNameKey  = []byte("config-name")
)
