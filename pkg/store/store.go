// Package store reads and writes the manifest and the per-direction GeoJSON
// records on disk.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"stopfill/pkg/transit"
)

// ErrNotFound is returned when a record file does not exist.
var ErrNotFound = errors.New("record not found")

// Default layout below the data dir.
const (
	DefaultManifest = "assets/transport_lines/manifest.json"
	DefaultAssetDir = "assets/transport_lines/core"
)

// Ref addresses one line direction and its record file.
type Ref struct {
	Line      string
	Direction transit.Direction
	Path      string // relative to the data dir
	Name      string // display name from the manifest
}

func (r Ref) String() string { return r.Line + "_" + r.Direction.Key() }

// FileStore keeps the manifest and records under one data directory.
type FileStore struct {
	dir      string
	manifest string
	assets   string
}

// NewFileStore creates a store rooted at dir. Empty manifest or assetDir
// fall back to the default layout.
func NewFileStore(dir, manifest, assetDir string) *FileStore {
	if manifest == "" {
		manifest = DefaultManifest
	}
	if assetDir == "" {
		assetDir = DefaultAssetDir
	}
	return &FileStore{dir: dir, manifest: manifest, assets: assetDir}
}

func (s *FileStore) abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(s.dir, filepath.FromSlash(rel))
}

// Refs lists every direction the manifest declares, in manifest order with
// outbound before inbound.
func (s *FileStore) Refs(m *Manifest) []Ref {
	var refs []Ref
	for _, l := range m.Lines {
		for _, d := range transit.Directions {
			e := l.Entry(d)
			if e == nil {
				continue
			}
			path := e.AssetPath
			if path == "" {
				path = filepath.ToSlash(filepath.Join(s.assets, l.Number+"_"+d.Key()+".geojson"))
			}
			refs = append(refs, Ref{Line: l.Number, Direction: d, Path: path, Name: e.Name})
		}
	}
	return refs
}

// LoadManifest reads the manifest.
func (s *FileStore) LoadManifest() (*Manifest, error) {
	data, err := os.ReadFile(s.abs(s.manifest))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", s.manifest, err)
	}
	return &m, nil
}

// SaveManifest replaces the manifest atomically.
func (s *FileStore) SaveManifest(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return writeFileAtomic(s.abs(s.manifest), append(data, '\n'))
}

// LoadRecord reads the record of ref. A missing file yields ErrNotFound.
func (s *FileStore) LoadRecord(ref Ref) (*Record, error) {
	data, err := os.ReadFile(s.abs(ref.Path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ref.Path, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref.Path, err)
	}
	rec.Direction = ref.Direction
	if rec.Line == "" {
		rec.Line = ref.Line
	}
	if rec.DirectionName == "" {
		rec.DirectionName = ref.Name
	}
	return &rec, nil
}

// SaveRecord replaces the record of ref atomically.
func (s *FileStore) SaveRecord(ref Ref, rec *Record) error {
	data, err := rec.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode %s: %w", ref.Path, err)
	}
	return writeFileAtomic(s.abs(ref.Path), data)
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(tmp))
		}
	}()

	if _, err = f.Write(data); err != nil {
		return multierr.Append(err, f.Close())
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
