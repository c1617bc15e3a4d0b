//go:build linux && cgo

package nvmeshim

// #include <stdint.h>
// #include <stdlib.h>
// #include "nvme_shim.h"
import "C"

import (
	"unsafe"

	"github.com/hyperpolymath/ochrance/subsystem"
)

// Linux wraps the Ochránce NVMe C shim (nvme_shim.c, compiled into
// this package by cgo). Every call opens and closes its own fd in the
// shim, so Close is a no-op kept only to satisfy BlockIOPort.
type Linux struct{}

// NewLinux constructs a BlockIOPort backed by the native NVMe shim.
func NewLinux() *Linux {
	return &Linux{}
}

func (l *Linux) ReadSMART(devicePath string) (subsystem.SmartInfo, error) {
	cpath := C.CString(devicePath)
	defer C.free(unsafe.Pointer(cpath))

	var info C.ochrance_smart_info_t
	ret := C.ochrance_nvme_read_smart(cpath, &info)
	if ret != 0 {
		return subsystem.SmartInfo{}, subsystem.NewErrnoError(int(ret))
	}
	return subsystem.SmartInfo{
		CriticalWarning:         uint8(info.critical_warning),
		CompositeTemperature:    uint16(info.composite_temperature),
		AvailableSpare:          uint8(info.available_spare),
		AvailableSpareThreshold: uint8(info.available_spare_threshold),
		PercentageUsed:          uint8(info.percentage_used),
		DataUnitsRead:           uint64(info.data_units_read),
		DataUnitsWritten:        uint64(info.data_units_written),
		PowerOnHours:            uint64(info.power_on_hours),
		UnsafeShutdowns:         uint32(info.unsafe_shutdowns),
		MediaErrors:             uint32(info.media_errors),
	}, nil
}

func (l *Linux) ReadBlock(devicePath string, lba uint64, blockSize int) ([]byte, error) {
	cpath := C.CString(devicePath)
	defer C.free(unsafe.Pointer(cpath))

	buf := C.malloc(C.size_t(blockSize))
	if buf == nil {
		return nil, subsystem.NewErrnoError(-12) // ENOMEM
	}
	defer C.free(buf)

	ret := C.ochrance_nvme_read_block(cpath, C.uint64_t(lba), buf, C.size_t(blockSize))
	if ret != 0 {
		return nil, subsystem.NewErrnoError(int(ret))
	}
	return C.GoBytes(buf, C.int(blockSize)), nil
}

func (l *Linux) WriteBlock(devicePath string, lba uint64, data []byte) error {
	if len(data) == 0 {
		return subsystem.NewErrnoError(-22) // EINVAL
	}
	cpath := C.CString(devicePath)
	defer C.free(unsafe.Pointer(cpath))

	ret := C.ochrance_nvme_write_block(cpath, C.uint64_t(lba), unsafe.Pointer(&data[0]), C.size_t(len(data)))
	if ret != 0 {
		return subsystem.NewErrnoError(int(ret))
	}
	return nil
}

func (l *Linux) Close() error {
	return nil
}

var _ subsystem.BlockIOPort = (*Linux)(nil)
