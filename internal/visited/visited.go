// Package visited keeps the durable set of article URLs already processed.
package visited

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store is a set of URLs backed by a one-column CSV file.
// Save rewrites the whole file.
type Store struct {
	path string

	mu   sync.RWMutex
	urls map[string]struct{}
}

// New returns an empty store that will save to path.
func New(path string) *Store {
	return &Store{path: path, urls: make(map[string]struct{})}
}

// Load reads the store from path. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	s := New(path)

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open visited file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(stripBOM(f))
	r.FieldsPerRecord = -1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read visited file %s: %w", path, err)
		}
		if len(record) == 0 {
			continue
		}
		if u := strings.TrimSpace(record[0]); u != "" {
			s.urls[u] = struct{}{}
		}
	}

	return s, nil
}

// Path is where Save writes.
func (s *Store) Path() string {
	return s.path
}

// Contains reports whether url was already processed.
func (s *Store) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.urls[url]
	return ok
}

// Add records url and reports whether it was new.
func (s *Store) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[url]; ok {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

// Len is the number of stored URLs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.urls)
}

// URLs returns the stored URLs sorted.
func (s *Store) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.urls))
	for u := range s.urls {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Save rewrites the file through a temp file and a rename, so readers see
// either the previous or the new contents.
func (s *Store) Save() error {
	urls := s.URLs()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create visited dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".visited-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp visited file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	for _, u := range urls {
		if err := w.Write([]string{u}); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write visited file: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write visited file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close visited file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace visited file: %w", err)
	}
	return nil
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	rdr, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if rdr != '\uFEFF' {
		br.UnreadRune()
	}
	return br
}
