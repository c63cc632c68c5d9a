//go:build !windows

package pe

func moduleImage() ([]byte, error) { return nil, ErrUnsupported }
