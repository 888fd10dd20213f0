package maincmd

import (
	"github.com/caarlos0/env/v6"
	"github.com/mna/iii/lang/vm"
)

// vmEnvConfig mirrors vm.Config but with env struct tags, letting the VM's
// tunables (spec §6) be overridden from the process environment via
// github.com/caarlos0/env/v6, the same library the teacher uses to load
// its own runtime configuration from the environment.
type vmEnvConfig struct {
	FrameCapacity      int     `env:"III_FRAME_CAP" envDefault:"64"`
	StackCapacity      int     `env:"III_STACK_CAP" envDefault:"16384"`
	GCGrowthFactor     float64 `env:"III_GC_GROWTH_FACTOR" envDefault:"2"`
	InitialGCThreshold int     `env:"III_GC_INITIAL_THRESHOLD" envDefault:"1048576"`
}

// loadVMConfig reads vmEnvConfig from the environment, falling back to
// vm.DefaultConfig's values for anything unset.
func loadVMConfig() (vm.Config, error) {
	var cfg vmEnvConfig
	if err := env.Parse(&cfg); err != nil {
		return vm.Config{}, err
	}
	return vm.Config{
		FrameCapacity:      cfg.FrameCapacity,
		StackCapacity:      cfg.StackCapacity,
		GCGrowthFactor:     cfg.GCGrowthFactor,
		InitialGCThreshold: cfg.InitialGCThreshold,
	}, nil
}
