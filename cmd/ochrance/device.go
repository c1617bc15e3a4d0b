package main

import (
	"os"

	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/nvmeshim"
)

// loadDeviceImage reads path and seeds an in-memory BlockIOPort with
// its contents split into fsmodel.BlockSize blocks, the last zero-
// padded if the file size is not an exact multiple. path doubles as
// the device identifier the BlockIOPort keys on, so attest/verify/
// repair against the same file address the same blocks.
//
// There is no real on-disk filesystem here (by design — see the
// subsystem's non-goals): a plain file stands in for a block device
// image, exercised through the same BlockIOPort contract the cgo-
// gated NVMe implementation satisfies.
func loadDeviceImage(path string) (*nvmeshim.Memory, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	blockCount := blockCountForSize(int64(len(raw)))

	port := nvmeshim.NewMemory()
	for i := 0; i < blockCount; i++ {
		start := i * fsmodel.BlockSize
		end := start + fsmodel.BlockSize
		block := make([]byte, fsmodel.BlockSize)
		if start < len(raw) {
			copy(block, raw[start:min(end, len(raw))])
		}
		port.Seed(path, uint64(i), block)
	}
	return port, blockCount, nil
}

func blockCountForSize(size int64) int {
	if size == 0 {
		return 0
	}
	return int((size + fsmodel.BlockSize - 1) / fsmodel.BlockSize)
}

// writeDeviceImage concatenates state's raw blocks (in index order)
// and writes them to path, for persisting a repaired image back out
// via --output.
func writeDeviceImage(state *fsmodel.State, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for i := 0; i < state.N(); i++ {
		b, err := state.Block(i)
		if err != nil {
			return err
		}
		if _, err := f.Write(b.Raw); err != nil {
			return err
		}
	}
	return nil
}
