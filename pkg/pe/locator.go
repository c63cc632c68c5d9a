package pe

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/golang/glog"

	"github.com/vietanhduong/buildid/pkg/region"
)

var ErrUnsupported = errors.New("module image is not available on this platform")

// Locator finds the CodeView GUID of the loaded module containing the locator's code.
type Locator struct {
	// Image returns the loaded image to inspect. Defaults to the module containing this
	// code, as mapped by the loader.
	Image func() ([]byte, error)
	// FirstEntryOnly stops at the first debug directory entry instead of scanning all of
	// them. Linkers put the CodeView entry first.
	FirstEntryOnly bool
}

func (l *Locator) Find() ([]byte, error) {
	cv, err := l.CodeView()
	if err != nil || cv == nil {
		return nil, err
	}
	return cv.GUID, nil
}

// CodeView returns the whole CodeView record. A record with an unknown signature is
// logged and treated as absent.
func (l *Locator) CodeView() (cv *CodeView, err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(runtime.Error)
			if !ok {
				panic(r)
			}
			cv, err = nil, fmt.Errorf("fault while reading module image: %w", rerr)
		}
	}()

	img, err := l.image()
	if err != nil {
		return nil, fmt.Errorf("load module image: %w", err)
	}
	cv, err = FindCodeView(img, l.FirstEntryOnly)
	if errors.Is(err, region.ErrSignatureMismatch) {
		glog.Warningf("Failed to read CodeView record: %v", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walk debug directory: %w", err)
	}
	if cv == nil {
		glog.V(1).Info("No CodeView debug directory entry found")
	}
	return cv, nil
}

func (l *Locator) image() ([]byte, error) {
	if l.Image != nil {
		return l.Image()
	}
	return moduleImage()
}
