// Package assets fingerprints the dashboard's static files for cache-busting URLs.
package assets

import (
	"crypto/sha1" // #nosec G505 - hashing for cache-busting only
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Asset is one file under the web directory.
type Asset struct {
	Name      string
	Path      string
	Hash      string
	Available bool
}

// URL is /static/<name>?v=<sha1>, or the bare path when the file was missing.
func (a Asset) URL() string {
	if !a.Available {
		return "/static/" + a.Name
	}
	return fmt.Sprintf("/static/%s?v=%s", a.Name, a.Hash)
}

type Manager struct {
	assets map[string]Asset
}

// NewManager hashes each named file in dir. A missing file is recorded as unavailable.
func NewManager(dir string, names ...string) (*Manager, error) {
	m := &Manager{assets: make(map[string]Asset, len(names))}
	for _, name := range names {
		a, err := hashFile(dir, name)
		if err != nil {
			return m, err
		}
		m.assets[name] = a
	}
	return m, nil
}

func hashFile(dir, name string) (Asset, error) {
	a := Asset{Name: name, Path: filepath.Join(dir, name)}
	fi, err := os.Stat(a.Path)
	if err != nil || fi.IsDir() {
		return a, nil
	}
	f, err := os.Open(a.Path)
	if err != nil {
		return a, fmt.Errorf("open asset %s: %w", name, err)
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return a, fmt.Errorf("hash asset %s: %w", name, err)
	}
	a.Hash = hex.EncodeToString(h.Sum(nil))
	a.Available = true
	return a, nil
}

// Get reports whether name is known and present on disk.
func (m *Manager) Get(name string) (Asset, bool) {
	a, ok := m.assets[name]
	return a, ok && a.Available
}

// URLs maps every known asset name to its URL, for templates.
func (m *Manager) URLs() map[string]string {
	out := make(map[string]string, len(m.assets))
	for name, a := range m.assets {
		out[name] = a.URL()
	}
	return out
}
