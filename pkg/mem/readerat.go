package mem

import (
	"fmt"
	"io"
	"os"

	bufra "github.com/avvmoto/buf-readerat"

	"github.com/vietanhduong/buildid/pkg/proc"
)

// MaxCopy bounds the size of a single copied view.
const MaxCopy = 64 << 20

// ReaderAt copies views out of an io.ReaderAt addressed by absolute address, such as
// /proc/<pid>/mem. Views are owned by the caller.
//
// Reads go through a page sized buffer. Mappings are page aligned, so a buffered block
// never spans a mapped and an unmapped page. A short buffered read is retried on the
// underlying reader.
type ReaderAt struct {
	r   io.ReaderAt
	raw io.ReaderAt
	f   *os.File
}

func NewReaderAt(r io.ReaderAt) *ReaderAt {
	return &ReaderAt{r: bufra.NewBufReaderAt(r, os.Getpagesize()), raw: r}
}

// OpenSelf reads the calling process through /proc/self/mem.
func OpenSelf() (*ReaderAt, error) {
	path := proc.SelfPath("mem")
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r := NewReaderAt(f)
	r.f = f
	return r, nil
}

func (r *ReaderAt) Close() error {
	if r == nil || r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

func (r *ReaderAt) View(addr, size uint64) ([]byte, error) {
	if size > MaxCopy {
		return nil, fmt.Errorf("view 0x%x+0x%x: size exceeds %d", addr, size, MaxCopy)
	}
	if addr > 1<<63-1 {
		return nil, fmt.Errorf("view 0x%x+0x%x: %w", addr, size, ErrUnmapped)
	}
	buf := make([]byte, size)
	n, err := r.r.ReadAt(buf, int64(addr))
	if n == len(buf) {
		return buf, nil
	}
	// the buffer hides the result of a failed block fill on later hits
	n, err = r.raw.ReadAt(buf, int64(addr))
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = ErrUnmapped
	}
	return nil, fmt.Errorf("view 0x%x+0x%x: read %d bytes: %w", addr, size, n, err)
}
