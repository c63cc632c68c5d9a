package buildid

import (
	"encoding/hex"
	"fmt"

	"github.com/vietanhduong/buildid/pkg/elf"
	"github.com/vietanhduong/buildid/pkg/macho"
	"github.com/vietanhduong/buildid/pkg/mem"
	"github.com/vietanhduong/buildid/pkg/pe"
	"github.com/vietanhduong/buildid/pkg/proc"
)

// Locator finds the identifier of the running binary. A nil identifier with a nil error
// means the binary has none.
type Locator interface {
	Find() ([]byte, error)
}

// Results of a lookup function.
const (
	LookupNotFound = 0
	LookupFound    = 1
)

// LookupError is a lookup function result other than LookupFound or LookupNotFound.
type LookupError struct {
	Code int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup function returned error code %d", e.Code)
}

// FuncLocator delegates to a function reporting the identifier together with
// LookupFound, LookupNotFound or an error code.
type FuncLocator func() ([]byte, int)

func (f FuncLocator) Find() ([]byte, error) {
	id, code := f()
	switch code {
	case LookupFound:
		if len(id) == 0 {
			return nil, nil
		}
		return id, nil
	case LookupNotFound:
		return nil, nil
	default:
		return nil, &LookupError{Code: code}
	}
}

// injected is set at link time with -ldflags "-X github.com/vietanhduong/buildid.injected=<hex>".
var injected string

// InjectedLocator decodes a hex encoded identifier. An empty string has no identifier.
type InjectedLocator string

func (s InjectedLocator) Find() ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	id, err := hex.DecodeString(string(s))
	if err != nil {
		return nil, fmt.Errorf("decode injected build id: %w", err)
	}
	return id, nil
}

type noneLocator struct{}

func (noneLocator) Find() ([]byte, error) { return nil, nil }

func NewLocator(cfg Config) (Locator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case StrategyELF:
		l := &elf.Locator{GoFallback: cfg.GoFallback}
		if cfg.Memory == MemoryProcMem {
			l.Memory = func([]*proc.Map) (mem.Memory, error) { return mem.OpenSelf() }
		}
		return l, nil
	case StrategyMachO:
		return &macho.Locator{}, nil
	case StrategyPE:
		return &pe.Locator{FirstEntryOnly: cfg.FirstEntryOnly}, nil
	case StrategyLdflags:
		return InjectedLocator(injected), nil
	case StrategyFunc:
		return FuncLocator(cfg.Lookup), nil
	default:
		return noneLocator{}, nil
	}
}
