package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stakingcore/native/staking"
)

// Params is the YAML document describing the staking configuration installed
// by the administrator.
type Params struct {
	PointsPerNFTStake      uint32 `yaml:"pointsPerNftStake" json:"pointsPerNftStake"`
	PointsPerNativeStake   uint32 `yaml:"pointsPerNativeStake" json:"pointsPerNativeStake"`
	PointsPerFungibleStake uint32 `yaml:"pointsPerFungibleStake" json:"pointsPerFungibleStake"`
	MinFreezePeriod        int64  `yaml:"minFreezePeriod" json:"minFreezePeriod"`
	AprBps                 uint32 `yaml:"aprBps" json:"aprBps"`
}

// StakingConfig converts the document into the engine's configuration.
func (p Params) StakingConfig() staking.Config {
	return staking.Config{
		PointsPerNFTStake:       p.PointsPerNFTStake,
		PointsPerNativeStake:    p.PointsPerNativeStake,
		PointsPerFungibleStake:  p.PointsPerFungibleStake,
		MinFreezePeriod:         p.MinFreezePeriod,
		AnnualPercentageRateBps: p.AprBps,
	}
}

// LoadParams reads and validates a staking parameter file.
func LoadParams(path string) (staking.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return staking.Config{}, fmt.Errorf("open params: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	var params Params
	if err := decoder.Decode(&params); err != nil {
		return staking.Config{}, fmt.Errorf("decode params: %w", err)
	}
	cfg := params.StakingConfig()
	if err := cfg.Validate(); err != nil {
		return staking.Config{}, fmt.Errorf("validate params: %w", err)
	}
	return cfg, nil
}
