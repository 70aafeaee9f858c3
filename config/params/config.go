// Package params defines the chain constants and confirmation-rule parameters
// used across forkwatch services.
package params

// ChainConfig contains the beacon chain constants the confirmation rule
// depends on, plus the tuning knobs of the rule itself.
type ChainConfig struct {
	ConfigName     string `yaml:"CONFIG_NAME"`
	SecondsPerSlot uint64 `yaml:"SECONDS_PER_SLOT"`
	SlotsPerEpoch  uint64 `yaml:"SLOTS_PER_EPOCH"`
	// ProposerScoreBoost is the proposer boost as a percentage of one
	// committee's weight. Observed fork-choice weights include it, so the
	// rule subtracts it before evaluating support.
	ProposerScoreBoost uint64 `yaml:"PROPOSER_SCORE_BOOST"`
	// ValidatorBalance is the effective balance assumed for every validator,
	// in Gwei. All weight accounting multiplies validator counts by this
	// constant.
	ValidatorBalance uint64 `yaml:"VALIDATOR_BALANCE"`
	// CommitteeWeightAdjustmentFactor inflates committee weight estimates for
	// slot ranges that do not cover a full epoch, in units of 1/1000. Keeps
	// the rule safe against committee size variance across slots.
	CommitteeWeightAdjustmentFactor uint64 `yaml:"COMMITTEE_WEIGHT_ADJUSTMENT_FACTOR"`
}

// MainnetConfig returns the chain config for Ethereum mainnet.
func MainnetConfig() *ChainConfig {
	return &ChainConfig{
		ConfigName:                      "mainnet",
		SecondsPerSlot:                  12,
		SlotsPerEpoch:                   32,
		ProposerScoreBoost:              40,
		ValidatorBalance:                32 * 1e9,
		CommitteeWeightAdjustmentFactor: 5,
	}
}

// MinimalTestConfig returns a small config for tests. The short epoch and the
// unit validator balance keep expected weights easy to compute by hand.
func MinimalTestConfig() *ChainConfig {
	return &ChainConfig{
		ConfigName:                      "minimal-test",
		SecondsPerSlot:                  12,
		SlotsPerEpoch:                   8,
		ProposerScoreBoost:              0,
		ValidatorBalance:                1,
		CommitteeWeightAdjustmentFactor: 0,
	}
}

// Copy returns a deep copy of the config.
func (c *ChainConfig) Copy() *ChainConfig {
	cp := *c
	return &cp
}

var activeConfig = MainnetConfig()

// BeaconConfig returns the process-wide active chain config.
func BeaconConfig() *ChainConfig {
	return activeConfig
}

// OverrideBeaconConfig replaces the process-wide active chain config. Callers
// are expected to do this once, during startup or test setup.
func OverrideBeaconConfig(c *ChainConfig) {
	activeConfig = c
}
