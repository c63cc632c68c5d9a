package region

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated         = errors.New("truncated")
	ErrMissingHeader     = errors.New("missing header")
	ErrSignatureMismatch = errors.New("signature mismatch")
)

// TruncatedError reports a record or table that claims more bytes than are available.
type TruncatedError struct {
	Have uint64
	Need uint64
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("have %d bytes, but need at least %d", e.Have, e.Need)
}

func (e *TruncatedError) Is(target error) bool { return target == ErrTruncated }

// MissingHeaderError reports a region too small to hold even a minimal header.
type MissingHeaderError struct {
	Size uint64
	Need uint64
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("missing header: have %d bytes, but need at least %d", e.Size, e.Need)
}

func (e *MissingHeaderError) Is(target error) bool { return target == ErrMissingHeader }
