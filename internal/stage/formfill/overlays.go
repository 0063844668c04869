package formfill

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"claimease/internal/domain"
)

// OverlayStore loads per-template overlay coordinate tables from
// <dir>/<template_id>.yaml. Loaded tables are cached for the process lifetime.
type OverlayStore struct {
	dir string

	mu     sync.Mutex
	tables map[string]*domain.OverlayTable
}

// NewOverlayStore creates an OverlayStore rooted at dir.
func NewOverlayStore(dir string) *OverlayStore {
	return &OverlayStore{dir: dir, tables: make(map[string]*domain.OverlayTable)}
}

// Lookup returns the table for templateID, or nil when the template has no
// table file.
func (s *OverlayStore) Lookup(templateID string) (*domain.OverlayTable, error) {
	if s.dir == "" || templateID == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[templateID]; ok {
		return t, nil
	}

	path := filepath.Join(s.dir, templateID+".yaml")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.tables[templateID] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("checking overlay table %s: %w", path, err)
	}
	table, err := LoadOverlayTable(path)
	if err != nil {
		return nil, err
	}
	if table.TemplateID == "" {
		table.TemplateID = templateID
	}
	s.tables[templateID] = table
	return table, nil
}

// LoadOverlayTable reads one overlay table file.
func LoadOverlayTable(path string) (*domain.OverlayTable, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading overlay table %s: %w", path, err)
	}
	var table domain.OverlayTable
	if err := v.Unmarshal(&table); err != nil {
		return nil, fmt.Errorf("decoding overlay table %s: %w", path, err)
	}
	if table.Version < 1 {
		return nil, fmt.Errorf("overlay table %s: version must be at least 1", path)
	}
	seen := make(map[string]bool, len(table.Fields))
	for i, f := range table.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("overlay table %s: field %d has no name", path, i+1)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("overlay table %s: duplicate field %q", path, f.Name)
		}
		if f.Page < 1 {
			return nil, fmt.Errorf("overlay table %s: field %q has no page", path, f.Name)
		}
		seen[f.Name] = true
	}
	return &table, nil
}
