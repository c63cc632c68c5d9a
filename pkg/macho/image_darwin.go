//go:build darwin

package macho

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// The mapping is never released so views handed out stay valid for the life of the
// process.
var executableImage = sync.OnceValues(func() ([]byte, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("find executable: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open executable: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("executable %s is empty", path)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	cpu, ok := HostCpu()
	if !ok {
		return data, nil
	}
	return Thin(data, cpu)
})
