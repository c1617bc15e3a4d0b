package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/hash"
)

// ErrCorrupt is returned by Decode when the payload is not a
// well-formed snapshot encoding, matching spec's snapshot-corrupt
// diagnostic.
var ErrCorrupt = fmt.Errorf("snapshot: payload is corrupt")

// Encode serializes s as a gzip-compressed, length-prefixed sequence
// of (BlockIndex, Block, BlockMetadata) triples.
func Encode(s *Snapshot) ([]byte, error) {
	var raw bytes.Buffer
	if err := writeUint64(&raw, uint64(s.N)); err != nil {
		return nil, err
	}
	if err := writeString(&raw, string(s.Algorithm)); err != nil {
		return nil, err
	}
	if err := writeUint64(&raw, uint64(len(s.Entries))); err != nil {
		return nil, err
	}
	for _, e := range s.Entries {
		if err := writeEntry(&raw, e); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	gw := gzip.NewWriter(&out)
	if _, err := gw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decode parses the gzip-compressed payload produced by Encode. Any
// structural failure is reported as ErrCorrupt, wrapping the
// underlying cause.
func Decode(payload []byte) (*Snapshot, error) {
	gr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer gr.Close()

	n, err := readUint64(gr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	algo, err := readString(gr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	count, err := readUint64(gr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	s := &Snapshot{N: int(n), Algorithm: hash.Algorithm(algo), Entries: make([]Entry, 0, count)}
	for i := uint64(0); i < count; i++ {
		e, err := readEntry(gr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		s.Entries = append(s.Entries, e)
	}
	return s, nil
}

func writeEntry(w io.Writer, e Entry) error {
	if err := writeUint64(w, uint64(e.Index)); err != nil {
		return err
	}
	if err := writeBlock(w, e.Block); err != nil {
		return err
	}
	return writeMetadata(w, e.Metadata)
}

func readEntry(r io.Reader) (Entry, error) {
	idx, err := readUint64(r)
	if err != nil {
		return Entry{}, err
	}
	b, err := readBlock(r)
	if err != nil {
		return Entry{}, err
	}
	m, err := readMetadata(r)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Index: int(idx), Block: b, Metadata: m}, nil
}

func writeBlock(w io.Writer, b fsmodel.Block) error {
	if err := writeBytes(w, b.Raw); err != nil {
		return err
	}
	if err := writeString(w, string(b.Leaf.Algorithm)); err != nil {
		return err
	}
	return writeBytes(w, b.Leaf.Bytes)
}

func readBlock(r io.Reader) (fsmodel.Block, error) {
	raw, err := readBytes(r)
	if err != nil {
		return fsmodel.Block{}, err
	}
	algo, err := readString(r)
	if err != nil {
		return fsmodel.Block{}, err
	}
	digestBytes, err := readBytes(r)
	if err != nil {
		return fsmodel.Block{}, err
	}
	return fsmodel.Block{Raw: raw, Leaf: hash.Digest{Algorithm: hash.Algorithm(algo), Bytes: digestBytes}}, nil
}

func writeMetadata(w io.Writer, m fsmodel.Metadata) error {
	if err := writeUint64(w, uint64(m.ModifiedAt.UnixNano())); err != nil {
		return err
	}
	if err := writeString(w, m.Owner); err != nil {
		return err
	}
	var ro byte
	if m.ReadOnly {
		ro = 1
	}
	_, err := w.Write([]byte{ro})
	return err
}

func readMetadata(r io.Reader) (fsmodel.Metadata, error) {
	nanos, err := readUint64(r)
	if err != nil {
		return fsmodel.Metadata{}, err
	}
	owner, err := readString(r)
	if err != nil {
		return fsmodel.Metadata{}, err
	}
	var roBuf [1]byte
	if _, err := io.ReadFull(r, roBuf[:]); err != nil {
		return fsmodel.Metadata{}, err
	}
	return fsmodel.Metadata{
		ModifiedAt: time.Unix(0, int64(nanos)).UTC(),
		Owner:      owner,
		ReadOnly:   roBuf[0] == 1,
	}, nil
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeUint64(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
