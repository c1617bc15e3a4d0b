package localfs

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/hyperpolymath/ochrance/hash"
	"github.com/hyperpolymath/ochrance/storage"
)

// CAS is a local filesystem-backed content-addressable store for
// snapshot payloads.
//
// Objects are stored immutably and keyed strictly by digest under
// Algorithm. This implementation is offline and deterministic: it
// never uses the network and never depends on wall-clock time.
type CAS struct {
	root      string
	Algorithm hash.Algorithm
}

// New constructs a filesystem CAS rooted at root, digesting objects
// under algorithm. The directory will be created if needed.
func New(root string, algorithm hash.Algorithm) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if !algorithm.Valid() {
		return nil, errors.New("localfs: unknown algorithm")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &CAS{root: root, Algorithm: algorithm}, nil
}

func (c *CAS) Put(bytes []byte) (hash.Digest, error) {
	id, err := hash.Sum(c.Algorithm, bytes)
	if err != nil {
		return hash.Digest{}, err
	}

	path := c.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return hash.Digest{}, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := c.Get(id)
			if rerr != nil {
				return hash.Digest{}, storage.ErrImmutable
			}
			if string(existing) != string(bytes) {
				return hash.Digest{}, storage.ErrImmutable
			}
			return id, nil
		}
		return hash.Digest{}, err
	}
	defer f.Close()

	if _, err := f.Write(bytes); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return hash.Digest{}, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return hash.Digest{}, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return hash.Digest{}, err
	}

	return id, nil
}

func (c *CAS) Get(id hash.Digest) ([]byte, error) {
	if !id.Valid() {
		return nil, storage.ErrInvalidDigest
	}
	path := c.pathFor(id)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	got, err := hash.Sum(c.Algorithm, b)
	if err != nil {
		return nil, err
	}
	if !got.Equal(id) {
		return nil, storage.ErrDigestMismatch
	}
	return b, nil
}

func (c *CAS) Has(id hash.Digest) bool {
	if !id.Valid() {
		return false
	}
	_, err := os.Stat(c.pathFor(id))
	return err == nil
}

func (c *CAS) pathFor(id hash.Digest) string {
	s := id.Hex()
	if len(s) < 2 {
		return filepath.Join(c.root, s)
	}
	return filepath.Join(c.root, s[:2], s)
}
