package pe

import (
	dpe "debug/pe"
	"encoding/binary"
)

const (
	testLfanew    = 0x80
	testDebugRVA  = 0x200
	testRecordRVA = 0x300
	testImageSize = 0x1000
)

var (
	guid = []byte{0x33, 0x22, 0x11, 0x00, 0x55, 0x44, 0x77, 0x66, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	le   = binary.LittleEndian
)

type imageSpec struct {
	pe32 bool
	// dirs is NumberOfRvaAndSizes; zero means 16
	dirs      uint32
	noOptHdr  bool
	debugSize uint32
	entries   []DebugDirectory
	record    []byte
}

func codeViewEntry(size uint32) DebugDirectory {
	return DebugDirectory{Type: DebugTypeCodeView, SizeOfData: size, AddressOfRawData: testRecordRVA}
}

func rsds(id []byte, age uint32, path string) []byte {
	b := append([]byte("RSDS"), id...)
	b = le.AppendUint32(b, age)
	return append(append(b, path...), 0)
}

func buildImage(spec imageSpec) []byte {
	img := make([]byte, testImageSize)
	copy(img, "MZ")
	le.PutUint32(img[lfanewOffset:], testLfanew)
	copy(img[testLfanew:], "PE\x00\x00")

	fh := img[testLfanew+4:]
	le.PutUint16(fh[0:], dpe.IMAGE_FILE_MACHINE_AMD64)
	if spec.noOptHdr {
		return img
	}

	dirs := spec.dirs
	if dirs == 0 {
		dirs = 16
	}
	magic, countOff, dirsOff := uint16(optionalMagic64), 108, 112
	if spec.pe32 {
		magic, countOff, dirsOff = optionalMagic32, 92, 96
	}
	le.PutUint16(fh[16:], uint16(dirsOff+int(dirs)*8))

	opt := img[testLfanew+4+fileHeaderSize:]
	le.PutUint16(opt[0:], magic)
	le.PutUint32(opt[countOff:], dirs)
	if dirs > dpe.IMAGE_DIRECTORY_ENTRY_DEBUG {
		dd := opt[dirsOff+dpe.IMAGE_DIRECTORY_ENTRY_DEBUG*8:]
		size := spec.debugSize
		if size == 0 {
			size = uint32(len(spec.entries) * DebugDirectorySize)
		}
		if len(spec.entries) > 0 {
			le.PutUint32(dd[0:], testDebugRVA)
		}
		le.PutUint32(dd[4:], size)
	}

	for i, e := range spec.entries {
		b := img[testDebugRVA+i*DebugDirectorySize:]
		le.PutUint32(b[0:], e.Characteristics)
		le.PutUint32(b[4:], e.TimeDateStamp)
		le.PutUint16(b[8:], e.MajorVersion)
		le.PutUint16(b[10:], e.MinorVersion)
		le.PutUint32(b[12:], e.Type)
		le.PutUint32(b[16:], e.SizeOfData)
		le.PutUint32(b[20:], e.AddressOfRawData)
		le.PutUint32(b[24:], e.PointerToRawData)
	}
	copy(img[testRecordRVA:], spec.record)
	return img
}
