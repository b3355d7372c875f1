package graph

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"unsafe"
)

const (
	magicBytes = "STOPROAD"
	version    = uint32(1)
	maxNodes   = 10_000_000
	maxEdges   = 50_000_000
)

type fileHeader struct {
	Magic    [8]byte
	Version  uint32
	NumNodes uint32
	NumEdges uint32
}

// WriteBinary caches g at path so the route server can skip PBF parsing on
// restart. The file is written to a temp path and renamed into place.
func WriteBinary(path string, g *Graph) error {
	if g.NumNodes == 0 {
		return fmt.Errorf("refusing to cache an empty graph")
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	w := &crcWriter{w: f, hash: crc32.NewIEEE()}

	hdr := fileHeader{Version: version, NumNodes: g.NumNodes, NumEdges: g.NumEdges}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	sections := []struct {
		name  string
		write func() error
	}{
		{"FirstOut", func() error { return writeUint32Slice(w, g.FirstOut) }},
		{"Head", func() error { return writeUint32Slice(w, g.Head) }},
		{"Weight", func() error { return writeUint32Slice(w, g.Weight) }},
		{"NodeLat", func() error { return writeFloat64Slice(w, g.NodeLat) }},
		{"NodeLon", func() error { return writeFloat64Slice(w, g.NodeLon) }},
	}
	for _, s := range sections {
		if err := s.write(); err != nil {
			return fmt.Errorf("write %s: %w", s.name, err)
		}
	}

	if err := binary.Write(f, binary.LittleEndian, w.hash.Sum32()); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadBinary loads a graph written by WriteBinary and checks its checksum and
// CSR invariants.
func ReadBinary(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	r := &crcReader{r: f, hash: crc32.NewIEEE()}

	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != version {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumNodes > maxNodes || hdr.NumEdges > maxEdges {
		return nil, fmt.Errorf("graph size %d nodes / %d edges exceeds limits", hdr.NumNodes, hdr.NumEdges)
	}

	g := &Graph{NumNodes: hdr.NumNodes, NumEdges: hdr.NumEdges}
	if g.FirstOut, err = readUint32Slice(r, int(hdr.NumNodes+1)); err != nil {
		return nil, fmt.Errorf("read FirstOut: %w", err)
	}
	if g.Head, err = readUint32Slice(r, int(hdr.NumEdges)); err != nil {
		return nil, fmt.Errorf("read Head: %w", err)
	}
	if g.Weight, err = readUint32Slice(r, int(hdr.NumEdges)); err != nil {
		return nil, fmt.Errorf("read Weight: %w", err)
	}
	if g.NodeLat, err = readFloat64Slice(r, int(hdr.NumNodes)); err != nil {
		return nil, fmt.Errorf("read NodeLat: %w", err)
	}
	if g.NodeLon, err = readFloat64Slice(r, int(hdr.NumNodes)); err != nil {
		return nil, fmt.Errorf("read NodeLon: %w", err)
	}

	computed := r.hash.Sum32()
	var stored uint32
	if err := binary.Read(f, binary.LittleEndian, &stored); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if stored != computed {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", stored, computed)
	}

	if err := validateCSR(g.FirstOut, g.Head, g.NumNodes); err != nil {
		return nil, fmt.Errorf("CSR invalid: %w", err)
	}
	return g, nil
}

func validateCSR(firstOut, head []uint32, numNodes uint32) error {
	if uint32(len(firstOut)) != numNodes+1 {
		return fmt.Errorf("FirstOut length %d != NumNodes+1 %d", len(firstOut), numNodes+1)
	}
	if n := firstOut[numNodes]; uint32(len(head)) != n {
		return fmt.Errorf("Head length %d != FirstOut[NumNodes] %d", len(head), n)
	}
	for i := uint32(1); i <= numNodes; i++ {
		if firstOut[i] < firstOut[i-1] {
			return fmt.Errorf("FirstOut not monotonic at %d", i)
		}
	}
	for i, h := range head {
		if h >= numNodes {
			return fmt.Errorf("Head[%d]=%d >= NumNodes=%d", i, h, numNodes)
		}
	}
	return nil
}

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	_, err := w.Write(unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4))
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	_, err := w.Write(unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8))
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	if _, err := io.ReadFull(r, unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	if _, err := io.ReadFull(r, unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)); err != nil {
		return nil, err
	}
	return s, nil
}

type crcWriter struct {
	w    io.Writer
	hash hash.Hash32
}

func (cw *crcWriter) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crcReader struct {
	r    io.Reader
	hash hash.Hash32
}

func (cr *crcReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
