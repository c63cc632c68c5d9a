package elf

import (
	"strings"

	"github.com/golang/glog"

	"github.com/vietanhduong/buildid/pkg/mem"
	"github.com/vietanhduong/buildid/pkg/proc"
)

// ModuleIterator walks the ELF objects loaded in a process, in address order. It is the
// pull-style counterpart of dl_iterate_phdr: finite and not restartable mid-scan.
type ModuleIterator struct {
	maps    []*proc.Map
	memory  mem.Memory
	objects map[proc.File][]*proc.Map
	i       int
	module  *Module
}

func NewModuleIterator(maps []*proc.Map, memory mem.Memory) *ModuleIterator {
	return &ModuleIterator{
		maps:    maps,
		memory:  memory,
		objects: proc.Objects(maps),
	}
}

func (it *ModuleIterator) Next() bool {
	for it.i < len(it.maps) {
		m := it.maps[it.i]
		it.i++
		if !it.isHeader(m) {
			continue
		}
		module, err := ReadModule(it.memory, m.Pathname, m.StartAddr)
		if err != nil {
			glog.V(2).Infof("Skip mapping %s: %v", m, err)
			continue
		}
		it.module = module
		return true
	}
	it.module = nil
	return false
}

func (it *ModuleIterator) Module() *Module { return it.module }

func (it *ModuleIterator) isHeader(m *proc.Map) bool {
	if m.FileOffset != 0 || !m.Readable() {
		return false
	}
	if !strings.HasPrefix(m.Pathname, "/") && m.Pathname != "[vdso]" {
		return false
	}
	_, ok := it.objects[m.File()]
	return ok
}
