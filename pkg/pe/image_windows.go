//go:build windows

package pe

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

// moduleImage returns the image of the module containing this function as mapped by the
// loader. The module stays loaded for as long as this code can run.
func moduleImage() ([]byte, error) {
	pc, _, _, ok := runtime.Caller(0)
	if !ok {
		return nil, errors.New("no caller pc")
	}

	var h windows.Handle
	flags := uint32(windows.GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS | windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT)
	if err := windows.GetModuleHandleEx(flags, (*uint16)(unsafe.Pointer(pc)), &h); err != nil {
		return nil, fmt.Errorf("get module handle for 0x%x: %w", pc, err)
	}

	var mi windows.ModuleInfo
	if err := windows.GetModuleInformation(windows.CurrentProcess(), h, &mi, uint32(unsafe.Sizeof(mi))); err != nil {
		return nil, fmt.Errorf("get module information: %w", err)
	}
	if mi.BaseOfDll == 0 || mi.SizeOfImage == 0 {
		return nil, fmt.Errorf("module 0x%x has no image", h)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(mi.BaseOfDll)), mi.SizeOfImage), nil
}
