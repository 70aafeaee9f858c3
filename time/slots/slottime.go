// Package slots provides conversions between slots, epochs and wall-clock
// time, anchored at the chain's genesis time.
package slots

import (
	"time"

	"github.com/forkwatchlabs/forkwatch/config/params"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
)

// ToEpoch returns the epoch a slot belongs to.
func ToEpoch(s types.Slot) types.Epoch {
	return types.Epoch(uint64(s) / params.BeaconConfig().SlotsPerEpoch)
}

// EpochStart returns the first slot of an epoch.
func EpochStart(e types.Epoch) types.Slot {
	return types.Slot(uint64(e) * params.BeaconConfig().SlotsPerEpoch)
}

// EpochEnd returns the last slot of an epoch.
func EpochEnd(e types.Epoch) types.Slot {
	return EpochStart(e+1) - 1
}

// SinceEpochStart returns the slot's offset within its epoch.
func SinceEpochStart(s types.Slot) uint64 {
	return uint64(s) % params.BeaconConfig().SlotsPerEpoch
}

// IsEpochStart reports whether the slot is the first of its epoch.
func IsEpochStart(s types.Slot) bool {
	return SinceEpochStart(s) == 0
}

// IsEpochEnd reports whether the slot is the last of its epoch.
func IsEpochEnd(s types.Slot) bool {
	return SinceEpochStart(s+1) == 0
}

// SinceGenesis returns the current slot given the genesis time.
func SinceGenesis(genesis, now time.Time) types.Slot {
	if now.Before(genesis) {
		return 0
	}
	elapsed := uint64(now.Sub(genesis) / time.Second)
	return types.Slot(elapsed / params.BeaconConfig().SecondsPerSlot)
}

// TimeIntoSlot returns the number of whole seconds elapsed inside the current
// slot, given the genesis time.
func TimeIntoSlot(genesis, now time.Time) uint64 {
	if now.Before(genesis) {
		return 0
	}
	elapsed := uint64(now.Sub(genesis) / time.Second)
	return elapsed % params.BeaconConfig().SecondsPerSlot
}

// StartTime returns the wall-clock time at which a slot begins.
func StartTime(genesis time.Time, s types.Slot) time.Time {
	d := time.Duration(uint64(s)*params.BeaconConfig().SecondsPerSlot) * time.Second
	return genesis.Add(d)
}
