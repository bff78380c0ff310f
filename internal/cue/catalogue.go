package cue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/cuetrace/opencue/internal/cueerr"
)

// Extension is the file suffix every cue file is stored under.
const Extension = ".opencue"

// Info is the lightweight metadata record kept in the catalogue index,
// built from a cue file without retaining the full parsed document.
type Info struct {
	Path            string            `json:"path"`
	Stem            string            `json:"stem"`
	Title           string            `json:"title"`
	DurationMs      int64             `json:"duration_ms"`
	CueCount        int               `json:"cue_count"`
	HasFingerprints bool              `json:"has_fingerprints"`
	ContentID       string            `json:"content_id"`
	ExternalIDs     map[string]string `json:"external_ids,omitempty"`
}

// Catalogue scans a directory for *.opencue files, indexes their metadata,
// and memoises fully-parsed instances so that multiple sessions can share
// one immutable File without re-reading or re-parsing it from disk.
type Catalogue struct {
	dir string

	mu    sync.RWMutex
	index map[string]Info  // by filename stem
	cache map[string]*File // by filename stem, populated lazily on Load
}

// NewCatalogue opens (creating if necessary) the catalogue directory and
// builds the initial index.
func NewCatalogue(dir string) (*Catalogue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cue catalogue: create dir: %w", err)
	}
	c := &Catalogue{
		dir:   dir,
		index: make(map[string]Info),
		cache: make(map[string]*File),
	}
	if err := c.RefreshIndex(); err != nil {
		return nil, err
	}
	return c, nil
}

// RefreshIndex rescans the catalogue directory. Cue files that fail to
// parse are logged and excluded from the index, but do not prevent the
// remaining files from being indexed (CueFileCorrupt propagation policy).
func (c *Catalogue) RefreshIndex() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("cue catalogue: read dir: %w", err)
	}

	index := make(map[string]Info)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		info, err := readInfo(path)
		if err != nil {
			slog.Warn("cue catalogue: skipping corrupt cue file", "path", path, "error", err)
			continue
		}
		index[info.Stem] = info
	}

	c.mu.Lock()
	c.index = index
	c.mu.Unlock()
	return nil
}

func readInfo(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return Info{}, fmt.Errorf("parse: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), Extension)
	return Info{
		Path:            path,
		Stem:            stem,
		Title:           f.Content.Title,
		DurationMs:      f.Content.DurationMs,
		CueCount:        len(f.Cues),
		HasFingerprints: f.Fingerprints != nil,
		ContentID:       f.Content.ContentID,
		ExternalIDs:     f.Content.ExternalIDs,
	}, nil
}

// Dir returns the catalogue's root directory, for callers that need to
// stage a file (e.g. an incremental recording save) alongside it.
func (c *Catalogue) Dir() string { return c.dir }

// Available returns the indexed metadata for every cue file, in no
// particular order.
func (c *Catalogue) Available() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Info, 0, len(c.index))
	for _, info := range c.index {
		out = append(out, info)
	}
	return out
}

// Search returns indexed entries whose title or filename stem contains the
// given substring, case-insensitively.
func (c *Catalogue) Search(query string) []Info {
	q := strings.ToLower(query)
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Info
	for _, info := range c.index {
		if strings.Contains(strings.ToLower(info.Title), q) || strings.Contains(strings.ToLower(info.Stem), q) {
			out = append(out, info)
		}
	}
	return out
}

// Load resolves identifier against the cache, then the index by filename
// stem, then by external ID, then as a direct path (with or without the
// .opencue suffix), parses it if not already cached, and returns the
// shared, immutable *File.
func (c *Catalogue) Load(identifier string) (*File, error) {
	if identifier == "" {
		return nil, fmt.Errorf("cue catalogue: empty identifier")
	}

	c.mu.RLock()
	if f, ok := c.cache[identifier]; ok {
		c.mu.RUnlock()
		return f, nil
	}
	info, byStem := c.index[identifier]
	var byExternal Info
	foundExternal := false
	if !byStem {
		for _, candidate := range c.index {
			for _, id := range candidate.ExternalIDs {
				if id == identifier {
					byExternal = candidate
					foundExternal = true
					break
				}
			}
			if foundExternal {
				break
			}
		}
	}
	c.mu.RUnlock()

	var path string
	switch {
	case byStem:
		path = info.Path
	case foundExternal:
		path = byExternal.Path
	default:
		path = identifier
		if !strings.HasSuffix(path, Extension) {
			path += Extension
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.dir, filepath.Base(path))
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", cueerr.ErrCueFileNotFound, identifier)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", cueerr.ErrCueFileCorrupt, identifier, err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), Extension)
	c.mu.Lock()
	c.cache[identifier] = &f
	c.cache[stem] = &f
	c.mu.Unlock()
	return &f, nil
}

// Add validates, writes, and indexes a new cue file under filename
// (the .opencue suffix is added if missing).
func (c *Catalogue) Add(f *File, filename string) (string, error) {
	if err := f.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", cueerr.ErrPersistIO, err)
	}
	f.SortCues()

	if !strings.HasSuffix(filename, Extension) {
		filename += Extension
	}
	path := filepath.Join(c.dir, filename)

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: marshal: %v", cueerr.ErrPersistIO, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write: %v", cueerr.ErrPersistIO, err)
	}

	stem := strings.TrimSuffix(filename, Extension)
	info, err := readInfo(path)
	if err != nil {
		return "", fmt.Errorf("%w: reread: %v", cueerr.ErrPersistIO, err)
	}

	c.mu.Lock()
	c.index[stem] = info
	c.cache[stem] = f
	c.mu.Unlock()

	return path, nil
}

// ClearCache drops all memoised parsed instances; the index is untouched.
func (c *Catalogue) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]*File)
	c.mu.Unlock()
}

var sanitizeRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeFilename derives a filesystem-safe filename stem from a title,
// the pattern recordings use for their catalogue and temp-save paths.
func SanitizeFilename(title string) string {
	s := sanitizeRe.ReplaceAllString(strings.TrimSpace(title), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "untitled"
	}
	return s
}
