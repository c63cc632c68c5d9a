package proc

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMaps = `00400000-00401000 r--p 00000000 fd:01 1048601                            /usr/bin/app
00401000-00402000 r-xp 00001000 fd:01 1048601                            /usr/bin/app
00403000-00404000 rw-p 00002000 fd:01 1048601                            /usr/bin/app
01a2b000-01a4c000 rw-p 00000000 00:00 0                                  [heap]
7f3c1e600000-7f3c1e628000 r--p 00000000 fd:01 1835123                    /usr/lib/x86_64-linux-gnu/libc.so.6
7f3c1e628000-7f3c1e7bd000 r-xp 00028000 fd:01 1835123                    /usr/lib/x86_64-linux-gnu/libc.so.6
7f3c1e7bd000-7f3c1e815000 r--p 001bd000 fd:01 1835123                    /usr/lib/x86_64-linux-gnu/libc.so.6
7f3c1e900000-7f3c1e901000 r--p 00000000 fd:01 2000001                    /usr/share/data with space.bin
7f3c1ea00000-7f3c1ea01000 rw-p 00000000 00:00 0 
7ffd5c9f0000-7ffd5ca11000 rw-p 00000000 00:00 0                          [stack]
7ffd5cbd6000-7ffd5cbda000 r--p 00000000 00:00 0                          [vvar]
7ffd5cbda000-7ffd5cbdc000 r-xp 00000000 00:00 0                          [vdso]
garbage line
ffffffffff600000-ffffffffff601000 --xp 00000000 00:00 0                  [vsyscall]
`

func mustParse(t *testing.T) []*Map {
	t.Helper()
	maps, err := ParseMaps(strings.NewReader(sampleMaps))
	require.NoError(t, err)
	return maps
}

func TestParseMaps(t *testing.T) {
	maps := mustParse(t)
	require.Len(t, maps, 13)

	want := &Map{
		Pathname:   "/usr/lib/x86_64-linux-gnu/libc.so.6",
		StartAddr:  0x7f3c1e628000,
		EndAddr:    0x7f3c1e7bd000,
		Perms:      "r-xp",
		FileOffset: 0x28000,
		DevMajor:   0xfd,
		DevMinor:   0x01,
		Inode:      1835123,
	}
	if diff := cmp.Diff(want, maps[5]); diff != "" {
		t.Errorf("libc text mapping mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "/usr/share/data with space.bin", maps[7].Pathname)
	assert.Equal(t, "", maps[8].Pathname)
	assert.True(t, maps[5].Executable())
	assert.True(t, maps[5].Readable())
	assert.False(t, maps[12].Readable())
	assert.Equal(t, uint64(0x195000), maps[5].Size())
}

func TestParseMapLineErrors(t *testing.T) {
	for _, line := range []string{
		"00400000 r--p 00000000 fd:01 1",
		"00400000-zz r--p 00000000 fd:01 1",
		"00402000-00401000 r--p 00000000 fd:01 1",
		"00400000-00401000 r-- 00000000 fd:01 1",
		"00400000-00401000 r--p 00000000 fd01 1",
		"00400000-00401000 r--p 00000000 fd:01",
		"00400000-00401000 r--p 00000000 fd:01 x",
	} {
		_, err := parseMapLine(line)
		assert.Error(t, err, line)
	}
}

func TestResolve(t *testing.T) {
	maps := mustParse(t)

	tests := []struct {
		name string
		addr uint64
		base uint64
	}{
		{"executable text", 0x00401234, 0x00400000},
		{"executable header", 0x00400010, 0x00400000},
		{"libc text", 0x7f3c1e700000, 0x7f3c1e600000},
		{"libc rodata", 0x7f3c1e800000, 0x7f3c1e600000},
		{"vdso", 0x7ffd5cbdb000, 0x7ffd5cbda000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Resolve(maps, tt.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.base, m.StartAddr)
		})
	}

	for _, addr := range []uint64{0x10, 0x01a2b100, 0x7f3c1ea00010, 0x7ffd5c9f0010} {
		_, err := Resolve(maps, addr)
		assert.ErrorIs(t, err, ErrNoMapping, "addr 0x%x", addr)
	}
}

func TestResolveWithoutHeaderMapping(t *testing.T) {
	maps, err := ParseMaps(strings.NewReader(
		"7f0000001000-7f0000002000 r-xp 00001000 fd:01 7 /usr/lib/libpartial.so\n"))
	require.NoError(t, err)
	_, err = Resolve(maps, 0x7f0000001800)
	assert.ErrorIs(t, err, ErrNoMapping)
}

func TestObjects(t *testing.T) {
	objects := Objects(mustParse(t))

	var paths []string
	for file := range objects {
		paths = append(paths, file.Path)
	}
	assert.ElementsMatch(t, []string{"/usr/bin/app", "/usr/lib/x86_64-linux-gnu/libc.so.6", "[vdso]"}, paths)

	for file, ms := range objects {
		if file.Path == "/usr/lib/x86_64-linux-gnu/libc.so.6" {
			assert.Len(t, ms, 3)
		}
	}
}

func TestSelfPath(t *testing.T) {
	assert.Equal(t, "/proc/self/maps", SelfPath("maps"))
	assert.Equal(t, "/proc/42/maps", HostProcPath("42", "maps"))
}
