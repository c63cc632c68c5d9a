//go:build !darwin

package macho

func executableImage() ([]byte, error) { return nil, ErrUnsupported }
