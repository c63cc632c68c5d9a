package elf

import (
	delf "debug/elf"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/vietanhduong/buildid/pkg/note"
)

type BuildType string

const (
	GNU BuildType = "GNU"
	GO  BuildType = "GO"
)

type BuildID struct {
	ID   []byte
	Type BuildType
}

func (id *BuildID) String() string {
	if id == nil {
		return ""
	}
	if id.Type == GO {
		return string(id.ID)
	}
	return hex.EncodeToString(id.ID)
}

// File is an ELF object read from disk, used to inspect objects that are not loaded.
type File struct {
	*delf.File
	fpath string
	f     *os.File
}

func OpenFile(fpath string) (*File, error) {
	f, err := os.OpenFile(fpath, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open elf file %s: %w", fpath, err)
	}
	e, err := delf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("elf new file: %w", err)
	}
	return &File{File: e, fpath: fpath, f: f}, nil
}

func (f *File) FilePath() string { return f.fpath }

func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

// BuildID reads the GNU build ID note of the file, and with goFallback the Go build ID
// note when there is no GNU one. PT_NOTE segments are searched first, as the loader sees
// them, then SHT_NOTE sections, which also cover notes the linker left out of any
// PT_NOTE segment.
func (f *File) BuildID(goFallback bool) (*BuildID, error) {
	notes, err := f.notes()
	if err != nil {
		return nil, err
	}
	var goID []byte
	for _, data := range notes {
		s := note.NewScanner(data, f.ByteOrder)
		for s.Next() {
			n := s.Note()
			if note.IsGNUBuildID(n) {
				return &BuildID{ID: n.Desc(), Type: GNU}, nil
			}
			if goFallback && goID == nil && note.IsGoBuildID(n) {
				goID = n.Desc()
			}
		}
		if err := s.Err(); err != nil {
			glog.V(2).Infof("Invalid note in %s: %v", f.fpath, err)
		}
	}
	if goID != nil {
		return &BuildID{ID: goID, Type: GO}, nil
	}
	return nil, nil
}

func (f *File) notes() ([][]byte, error) {
	var out [][]byte
	for _, p := range f.Progs {
		if p.Type != delf.PT_NOTE || p.Filesz == 0 {
			continue
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("read note segment at 0x%x: %w", p.Off, err)
		}
		out = append(out, data)
	}
	for _, s := range f.Sections {
		if s.Type != delf.SHT_NOTE || s.Size == 0 {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("read section %s: %w", s.Name, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// ReadBuildID reads the build ID of the ELF file at fpath.
func ReadBuildID(fpath string, goFallback bool) (*BuildID, error) {
	f, err := OpenFile(fpath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.BuildID(goFallback)
}
