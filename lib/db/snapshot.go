package db

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Snapshot encoding
// --------------------------------------------------------------------------

// SnapshotVersion is the version of the binary snapshot layout written by WriteSnapshot.
const SnapshotVersion = 4

// SnapshotEntry is a single record of a snapshot.
type SnapshotEntry struct {
	Key       string
	Value     []byte
	ExpiresAt int64 // unix nanos, 0 = never
}

// WriteSnapshot writes the snapshot layout shared by all engines that support Save:
//
//	magic | version (uint8) | count (uint64) | count * (keyLen uint32, key, expiresAt int64, valueLen uint32, value)
//
// The magic identifies the engine so that a snapshot of one engine is never loaded into another by accident.
func WriteSnapshot(w io.Writer, magic string, entries []SnapshotEntry) error {
	bw := bufio.NewWriterSize(w, 1024*1024)

	if _, err := bw.WriteString(magic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(SnapshotVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, e := range entries {
		if err := writeBytes(bw, []byte(e.Key)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, e.ExpiresAt); err != nil {
			return err
		}
		if err := writeBytes(bw, e.Value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ReadSnapshot reads a snapshot written by WriteSnapshot and calls fn for every entry.
func ReadSnapshot(r io.Reader, magic string, fn func(SnapshotEntry) error) error {
	br := bufio.NewReaderSize(r, 1024*1024)

	magicBytes := make([]byte, len(magic))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magic {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != SnapshotVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, SnapshotVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	for i := uint64(0); i < count; i++ {
		key, err := readBytes(br)
		if err != nil {
			return err
		}
		var expiresAt int64
		if err := binary.Read(br, binary.LittleEndian, &expiresAt); err != nil {
			return err
		}
		value, err := readBytes(br)
		if err != nil {
			return err
		}
		if err := fn(SnapshotEntry{Key: string(key), Value: value, ExpiresAt: expiresAt}); err != nil {
			return err
		}
	}
	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
