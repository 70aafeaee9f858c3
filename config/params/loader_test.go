package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadChainConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("CONFIG_NAME: devnet\nSLOTS_PER_EPOCH: 8\nSECONDS_PER_SLOT: 6\n")
	require.NoError(t, os.WriteFile(path, content, 0600))

	prev := BeaconConfig()
	defer OverrideBeaconConfig(prev)

	conf, err := LoadChainConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, "devnet", conf.ConfigName)
	require.Equal(t, uint64(8), conf.SlotsPerEpoch)
	require.Equal(t, uint64(6), conf.SecondsPerSlot)
	// Unset keys keep the mainnet defaults.
	require.Equal(t, uint64(40), conf.ProposerScoreBoost)
	require.Equal(t, conf, BeaconConfig())
}

func TestLoadChainConfigFile_UnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("NOT_A_REAL_KEY: 1\n"), 0600))

	_, err := LoadChainConfigFile(path)
	require.Error(t, err)
}

func TestLoadChainConfigFile_ZeroSlotsPerEpoch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SLOTS_PER_EPOCH: 0\n"), 0600))

	_, err := LoadChainConfigFile(path)
	require.Error(t, err)
}
