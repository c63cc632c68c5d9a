package buildid

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/golang/glog"
)

type Strategy string

const (
	// StrategyELF reads the GNU build ID note of the loaded ELF object containing this
	// package.
	StrategyELF Strategy = "elf"
	// StrategyMachO reads the LC_UUID load command of the running executable.
	StrategyMachO Strategy = "macho"
	// StrategyPE reads the CodeView GUID from the debug directory of the loaded module.
	StrategyPE Strategy = "pe"
	// StrategyLdflags decodes the hex identifier injected at link time with
	// -ldflags "-X github.com/vietanhduong/buildid.injected=<hex>".
	StrategyLdflags Strategy = "ldflags"
	// StrategyFunc asks Config.Lookup.
	StrategyFunc Strategy = "func"
	// StrategyNone never finds an identifier.
	StrategyNone Strategy = "none"
)

// Memory selects how the ELF strategy reads loaded objects.
type Memory string

const (
	// MemoryDirect reads loaded objects in place.
	MemoryDirect Memory = "direct"
	// MemoryProcMem copies loaded objects out of /proc/self/mem.
	MemoryProcMem Memory = "procmem"
)

const (
	EnvLocator    = "BUILDID_LOCATOR"
	EnvMemory     = "BUILDID_MEMORY"
	EnvGoFallback = "BUILDID_GO_FALLBACK"
	EnvFirstEntry = "BUILDID_FIRST_ENTRY_ONLY"
)

type Config struct {
	Strategy Strategy
	Memory   Memory
	// GoFallback makes the ELF strategy return the Go build ID note of objects without a
	// GNU build ID.
	GoFallback bool
	// FirstEntryOnly makes the PE strategy look at the first debug directory entry only.
	FirstEntryOnly bool
	// Lookup backs StrategyFunc.
	Lookup func() ([]byte, int)
}

// DefaultStrategy is the strategy for the running platform. A link-time injected
// identifier takes precedence over reading the binary.
func DefaultStrategy() Strategy {
	if injected != "" {
		return StrategyLdflags
	}
	return strategyFor(runtime.GOOS)
}

func strategyFor(goos string) Strategy {
	switch goos {
	case "linux", "android":
		return StrategyELF
	case "darwin", "ios":
		return StrategyMachO
	case "windows":
		return StrategyPE
	default:
		return StrategyNone
	}
}

// DefaultConfig returns the configuration for the running platform, overridden by the
// BUILDID_* environment variables.
func DefaultConfig() Config {
	cfg := Config{
		Strategy: DefaultStrategy(),
		Memory:   MemoryDirect,
	}
	if v := os.Getenv(EnvLocator); v != "" {
		cfg.Strategy = Strategy(v)
	}
	if v := os.Getenv(EnvMemory); v != "" {
		cfg.Memory = Memory(v)
	}
	envBool(EnvGoFallback, &cfg.GoFallback)
	envBool(EnvFirstEntry, &cfg.FirstEntryOnly)
	return cfg
}

func envBool(name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		glog.Warningf("Ignore %s=%q: %v", name, v, err)
		return
	}
	*dst = b
}

func (c Config) validate() error {
	switch c.Strategy {
	case StrategyELF, StrategyMachO, StrategyPE, StrategyLdflags, StrategyNone:
	case StrategyFunc:
		if c.Lookup == nil {
			return fmt.Errorf("strategy %s requires a lookup function", c.Strategy)
		}
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	switch c.Memory {
	case "", MemoryDirect, MemoryProcMem:
	default:
		return fmt.Errorf("unknown memory %q", c.Memory)
	}
	return nil
}
