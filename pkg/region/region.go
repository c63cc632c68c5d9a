// Package region reads fixed-size fields out of untrusted byte windows. Every accessor
// checks the window length first and reports a *TruncatedError instead of panicking.
package region

import "encoding/binary"

type Region struct {
	data  []byte
	order binary.ByteOrder
}

func New(data []byte, order binary.ByteOrder) Region {
	if order == nil {
		order = binary.NativeEndian
	}
	return Region{data: data, order: order}
}

func (r Region) Len() uint64 { return uint64(len(r.data)) }

func (r Region) Data() []byte { return r.data }

func (r Region) Order() binary.ByteOrder { return r.order }

// Slice returns a view of n bytes at off.
func (r Region) Slice(off, n uint64) ([]byte, error) {
	if err := r.check(off, n); err != nil {
		return nil, err
	}
	return r.data[off : off+n : off+n], nil
}

// Sub returns the window [off, off+n) as a new Region with the same byte order.
func (r Region) Sub(off, n uint64) (Region, error) {
	b, err := r.Slice(off, n)
	if err != nil {
		return Region{}, err
	}
	return Region{data: b, order: r.order}, nil
}

// Tail returns everything from off to the end of the region.
func (r Region) Tail(off uint64) (Region, error) {
	if off > r.Len() {
		return Region{}, &TruncatedError{Have: r.Len(), Need: off}
	}
	return Region{data: r.data[off:], order: r.order}, nil
}

func (r Region) Uint16(off uint64) (uint16, error) {
	b, err := r.Slice(off, 2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r Region) Uint32(off uint64) (uint32, error) {
	b, err := r.Slice(off, 4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r Region) Uint64(off uint64) (uint64, error) {
	b, err := r.Slice(off, 8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r Region) check(off, n uint64) error {
	size := r.Len()
	// written so that off+n cannot wrap
	if off > size || n > size-off {
		need := off + n
		if need < off {
			need = ^uint64(0)
		}
		return &TruncatedError{Have: size, Need: need}
	}
	return nil
}
