// Package nvmeshim provides BlockIOPort implementations: a portable
// in-memory default for tests and non-Linux builds, and a cgo-gated
// wrapper over the Ochránce NVMe C shim on Linux (nvme_linux.go).
package nvmeshim

import (
	"sync"

	"github.com/hyperpolymath/ochrance/subsystem"
)

// Memory is an in-memory BlockIOPort keyed by device path, useful for
// tests and for any environment without a real NVMe device. It is
// safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	devices map[string]*memoryDevice
}

type memoryDevice struct {
	blocks map[uint64][]byte
	smart  subsystem.SmartInfo
	closed bool
}

// NewMemory constructs an empty in-memory port.
func NewMemory() *Memory {
	return &Memory{devices: map[string]*memoryDevice{}}
}

// Seed preloads devicePath with block data at lba (SMART info is set
// separately), useful for constructing test fixtures without going through
// WriteBlock.
func (m *Memory) Seed(devicePath string, lba uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.device(devicePath)
	cp := append([]byte(nil), data...)
	d.blocks[lba] = cp
}

// SeedSMART sets the SMART info reported for devicePath.
func (m *Memory) SeedSMART(devicePath string, info subsystem.SmartInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.device(devicePath).smart = info
}

func (m *Memory) device(devicePath string) *memoryDevice {
	d, ok := m.devices[devicePath]
	if !ok {
		d = &memoryDevice{blocks: map[uint64][]byte{}}
		m.devices[devicePath] = d
	}
	return d
}

func (m *Memory) ReadSMART(devicePath string) (subsystem.SmartInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[devicePath]
	if !ok || d.closed {
		return subsystem.SmartInfo{}, subsystem.NewErrnoError(-2) // ENOENT
	}
	return d.smart, nil
}

func (m *Memory) ReadBlock(devicePath string, lba uint64, blockSize int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[devicePath]
	if !ok || d.closed {
		return nil, subsystem.NewErrnoError(-2) // ENOENT
	}
	b, ok := d.blocks[lba]
	if !ok {
		return make([]byte, blockSize), nil
	}
	if len(b) != blockSize {
		return nil, subsystem.NewErrnoError(-5) // EIO
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) WriteBlock(devicePath string, lba uint64, data []byte) error {
	if len(data) == 0 {
		return subsystem.NewErrnoError(-22) // EINVAL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.device(devicePath)
	if d.closed {
		return subsystem.NewErrnoError(-2) // ENOENT
	}
	d.blocks[lba] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.devices {
		d.closed = true
	}
	return nil
}

var _ subsystem.BlockIOPort = (*Memory)(nil)
