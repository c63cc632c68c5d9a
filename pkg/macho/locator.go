package macho

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

var ErrUnsupported = errors.New("executable image is not available on this platform")

// Locator finds the LC_UUID of the running executable.
type Locator struct {
	// Image returns the Mach-O image to inspect. Defaults to a read-only mapping of the
	// running executable, narrowed to the host architecture for universal binaries.
	Image func() ([]byte, error)
}

func (l *Locator) Find() ([]byte, error) {
	img, err := l.image()
	if err != nil {
		return nil, fmt.Errorf("load executable image: %w", err)
	}
	id, err := FindUUID(img)
	if err != nil {
		return nil, fmt.Errorf("walk load commands: %w", err)
	}
	if id == nil {
		glog.V(1).Info("No LC_UUID load command found")
	}
	return id, nil
}

func (l *Locator) image() ([]byte, error) {
	if l.Image != nil {
		return l.Image()
	}
	return executableImage()
}
