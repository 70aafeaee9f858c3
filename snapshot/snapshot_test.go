package snapshot

import (
	"testing"

	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/stretchr/testify/require"
)

// The beacon REST API emits uint64 fields as quoted decimals; snapshots we
// wrote ourselves may carry bare numbers. Both must decode.
func TestUnmarshal_QuotedAndBareNumbers(t *testing.T) {
	raw := []byte(`{
		"current_slot": "7154655",
		"current_time_in_slot": 3,
		"head_root": "0x74688eb28c6913d9e791e38e32ab2b2b1ba8378639443db82fee1c3282b8477e",
		"justified_checkpoint": {"epoch": "223582", "root": "0x74688eb28c6913d9e791e38e32ab2b2b1ba8378639443db82fee1c3282b8477e"},
		"finalized_checkpoint": {"epoch": 223581, "root": "0x74688eb28c6913d9e791e38e32ab2b2b1ba8378639443db82fee1c3282b8477e"},
		"committee_size": 29184,
		"blocks": [
			{"slot": "7154654", "block_root": "0x74688eb28c6913d9e791e38e32ab2b2b1ba8378639443db82fee1c3282b8477e", "parent_root": "0x0000000000000000000000000000000000000000000000000000000000000000", "weight": "933888000000000"}
		]
	}`)
	s, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, types.Slot(7154655), s.Slot)
	require.Equal(t, uint64(3), s.TimeInSlot)
	require.Equal(t, types.Epoch(223582), s.JustifiedCheckpoint.Epoch)
	require.Equal(t, types.Epoch(223581), s.FinalizedCheckpoint.Epoch)
	require.Len(t, s.Blocks, 1)
	require.Equal(t, types.Gwei(933888000000000), s.Blocks[0].Weight)
	require.True(t, s.Blocks[0].ParentRoot.IsZero())

	enc, err := s.Marshal()
	require.NoError(t, err)
	again, err := Unmarshal(enc)
	require.NoError(t, err)
	require.Equal(t, s, again)
}

func TestUnmarshal_BadRoot(t *testing.T) {
	_, err := Unmarshal([]byte(`{"head_root": "0x1234"}`))
	require.Error(t, err)
}
