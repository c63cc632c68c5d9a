// Package buildid returns the identifier the toolchain embedded into the running binary:
// the GNU build ID note on ELF platforms, LC_UUID on Darwin and the CodeView GUID on
// Windows. It keys caches, matches debug symbols or detects binary changes without
// hashing the binary.
//
//	id := buildid.Get() // nil when the binary has no identifier
package buildid

import (
	"encoding/hex"
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/vietanhduong/buildid/pkg/elf"
	"github.com/vietanhduong/buildid/pkg/macho"
	"github.com/vietanhduong/buildid/pkg/pe"
	"github.com/vietanhduong/buildid/pkg/region"
)

// Lookup runs l and folds every failure into an absent identifier. Failures are logged
// with a severity matching how unexpected they are.
func Lookup(l Locator) []byte {
	id, err := l.Find()
	if err == nil {
		if id == nil {
			glog.V(1).Info("No build ID found")
		}
		return id
	}

	var lerr *LookupError
	switch {
	case errors.Is(err, elf.ErrResolution), errors.As(err, &lerr):
		glog.Errorf("Failed to find build ID: %v", err)
	case errors.Is(err, macho.ErrUnsupported), errors.Is(err, pe.ErrUnsupported):
		glog.V(1).Infof("Build ID is not available: %v", err)
	case errors.Is(err, region.ErrTruncated), errors.Is(err, region.ErrMissingHeader):
		glog.V(2).Infof("Failed to find build ID: %v", err)
	default:
		glog.Warningf("Failed to find build ID: %v", err)
	}
	return nil
}

var defaultID = sync.OnceValue(func() []byte {
	l, err := NewLocator(DefaultConfig())
	if err != nil {
		glog.Errorf("Failed to create build ID locator: %v", err)
		return nil
	}
	return Lookup(l)
})

// Get returns the identifier of the running binary, or nil when it has none. The lookup
// runs once per process; every caller gets the same slice, which must not be modified.
func Get() []byte { return defaultID() }

// Hex returns Get as lowercase hex, or "" when there is no identifier.
func Hex() string { return hex.EncodeToString(Get()) }
