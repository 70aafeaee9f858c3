package params

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// LoadChainConfigFile reads a yaml chain config file and applies it on top of
// the mainnet defaults, making the result the active config. Unknown keys are
// rejected so that typos in override files fail loudly.
func LoadChainConfigFile(path string) (*ChainConfig, error) {
	yamlFile, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "could not read chain config file")
	}
	conf := MainnetConfig().Copy()
	if err := yaml.UnmarshalStrict(yamlFile, conf); err != nil {
		return nil, errors.Wrapf(err, "could not parse chain config file %s", path)
	}
	if conf.SlotsPerEpoch == 0 {
		return nil, errors.Errorf("chain config file %s sets SLOTS_PER_EPOCH to zero", path)
	}
	if conf.SecondsPerSlot == 0 {
		return nil, errors.Errorf("chain config file %s sets SECONDS_PER_SLOT to zero", path)
	}
	OverrideBeaconConfig(conf)
	return conf, nil
}
