package note

import "encoding/binary"

// Scanner walks the note records of a region in order. It stops at the end of the region
// or at the first malformed record; the error is then available from Err. To start over,
// create a new Scanner.
type Scanner struct {
	rest  []byte
	order binary.ByteOrder
	note  Note
	err   error
}

func NewScanner(data []byte, order binary.ByteOrder) *Scanner {
	return &Scanner{rest: data, order: order}
}

func (s *Scanner) Next() bool {
	if s.err != nil || len(s.rest) == 0 {
		return false
	}
	n, rest, err := Parse(s.rest, s.order)
	if err != nil {
		s.err = err
		s.rest = nil
		return false
	}
	s.note = n
	s.rest = rest
	return true
}

func (s *Scanner) Note() Note { return s.note }

func (s *Scanner) Err() error { return s.err }

// Find returns the descriptor of the first note accepted by match. When no note matches,
// the descriptor is nil and err is whatever stopped the scan (nil at a clean end).
func Find(data []byte, order binary.ByteOrder, match func(Note) bool) ([]byte, error) {
	s := NewScanner(data, order)
	for s.Next() {
		if n := s.Note(); match(n) {
			return n.Desc(), nil
		}
	}
	return nil, s.Err()
}

func FindGNUBuildID(data []byte, order binary.ByteOrder) ([]byte, error) {
	return Find(data, order, IsGNUBuildID)
}
