package proc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// ParseProcMap returns every mapping of the process, in address order.
func ParseProcMap(pid int) ([]*Map, error) {
	return parseMapFile(HostProcPath(fmt.Sprintf("%d", pid), "maps"))
}

// ParseSelfMaps returns every mapping of the calling process, in address order.
func ParseSelfMaps() ([]*Map, error) {
	return parseMapFile(SelfPath("maps"))
}

func parseMapFile(mapfile string) ([]*Map, error) {
	f, err := os.Open(mapfile)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", mapfile, err)
	}
	defer f.Close()

	ret, err := ParseMaps(f)
	if err != nil {
		return nil, fmt.Errorf("parse proc map %s: %w", mapfile, err)
	}
	return ret, nil
}

// ParseMaps parses the content of a /proc/<pid>/maps file. Malformed lines are skipped.
func ParseMaps(r io.Reader) ([]*Map, error) {
	var ret []*Map
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		m, err := parseMapLine(line)
		if err != nil {
			glog.V(3).Infof("Skip proc map line %q: %v", line, err)
			continue
		}
		ret = append(ret, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return ret, nil
}

// 7f3c1e600000-7f3c1e628000 r--p 00000000 fd:01 1835123   /usr/lib/x86_64-linux-gnu/libc.so.6
func parseMapLine(line string) (*Map, error) {
	rest := line
	next := func() string {
		rest = strings.TrimLeft(rest, " \t")
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			f := rest
			rest = ""
			return f
		}
		f := rest[:i]
		rest = rest[i:]
		return f
	}
	addrs, perms, offset, dev, inode := next(), next(), next(), next(), next()
	if inode == "" {
		return nil, fmt.Errorf("not enough fields")
	}

	var m Map
	var err error
	start, end, ok := strings.Cut(addrs, "-")
	if !ok {
		return nil, fmt.Errorf("invalid address range %q", addrs)
	}
	if m.StartAddr, err = strconv.ParseUint(start, 16, 64); err != nil {
		return nil, fmt.Errorf("parse start address: %w", err)
	}
	if m.EndAddr, err = strconv.ParseUint(end, 16, 64); err != nil {
		return nil, fmt.Errorf("parse end address: %w", err)
	}
	if m.EndAddr < m.StartAddr {
		return nil, fmt.Errorf("invalid address range %q", addrs)
	}
	if len(perms) != 4 {
		return nil, fmt.Errorf("invalid permissions %q", perms)
	}
	m.Perms = perms
	if m.FileOffset, err = strconv.ParseUint(offset, 16, 64); err != nil {
		return nil, fmt.Errorf("parse offset: %w", err)
	}
	major, minor, ok := strings.Cut(dev, ":")
	if !ok {
		return nil, fmt.Errorf("invalid device %q", dev)
	}
	v, err := strconv.ParseUint(major, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("parse device major: %w", err)
	}
	m.DevMajor = uint32(v)
	if v, err = strconv.ParseUint(minor, 16, 32); err != nil {
		return nil, fmt.Errorf("parse device minor: %w", err)
	}
	m.DevMinor = uint32(v)
	if m.Inode, err = strconv.ParseUint(inode, 10, 64); err != nil {
		return nil, fmt.Errorf("parse inode: %w", err)
	}
	m.Pathname = strings.TrimSpace(rest)
	return &m, nil
}

func isAnonymous(mapname string) bool {
	return mapname == "" || (strings.HasPrefix(mapname, "//anon") ||
		strings.HasPrefix(mapname, "/dev/zero") ||
		strings.HasPrefix(mapname, "/anon_hugepage") ||
		strings.HasPrefix(mapname, "[stack") ||
		strings.HasPrefix(mapname, "/SYSV") ||
		strings.HasPrefix(mapname, "[heap]") ||
		strings.HasPrefix(mapname, "[vsyscall]"))
}
