package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/E4S-Project/e4s-cl/internal/pkg/buildcfg"
	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
	fsatomic "github.com/E4S-Project/e4s-cl/pkg/util/fs"
	"github.com/E4S-Project/e4s-cl/pkg/util/fs/lock"
)

// Level is a storage level, per spec.md §3's "two independent stores".
type Level int

const (
	User Level = iota
	System
)

func (l Level) String() string {
	if l == System {
		return "system"
	}
	return "user"
}

// document is the on-disk shape of one level's store, per spec.md §6:
// `{ selected: string?, profiles: [...] }`.
type document struct {
	Selected string    `json:"selected,omitempty"`
	Profiles []Profile `json:"profiles"`
}

// Store is a handle on one storage level's document, opened fresh for
// every operation rather than held as a process-wide singleton (spec.md
// §9's "avoid singletons").
type Store struct {
	level Level
	path  string
}

// Open returns a handle for level, without touching the filesystem yet.
func Open(level Level) *Store {
	path := buildcfg.UserStorePath()
	if level == System {
		path = buildcfg.SystemStorePath()
	}
	return &Store{level: level, path: path}
}

func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &document{}, nil
	}
	if err != nil {
		return nil, e4serr.Wrap(err, "reading %s store", s.level)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, e4serr.NewConfigError("%s store %s is not valid JSON: %v", s.level, s.path, err)
	}
	sortProfiles(doc.Profiles)
	return &doc, nil
}

func sortProfiles(profiles []Profile) {
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
}

// write serializes doc with sorted map/slice keys (spec.md §6's
// "JSON serialization must be deterministic") and commits it with a
// temp-file-fsync-rename, matching C5's atomic-write invariant.
func (s *Store) write(doc *document) error {
	if s.level == System {
		return e4serr.NewConfigError("the system store is read-only")
	}
	sortProfiles(doc.Profiles)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return e4serr.Wrap(err, "serializing %s store", s.level)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return e4serr.Wrap(err, "creating %s store directory", s.level)
	}
	return fsatomic.AtomicWriteFile(s.path, data, 0644)
}

// withLock runs fn while holding an advisory exclusive lock on the
// store's document, for the duration of the whole read-modify-write
// cycle — C5's "concurrent writers ... serialize via an advisory file
// lock held for the duration of update" (spec.md §4.5).
func (s *Store) withLock(fn func(*document) (*document, error)) error {
	if s.level == System {
		doc, err := s.read()
		if err != nil {
			return err
		}
		_, err = fn(doc)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return e4serr.Wrap(err, "creating %s store directory", s.level)
	}
	lockPath := s.path + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return e4serr.Wrap(err, "creating %s store lock file", s.level)
	}
	lf.Close()
	fd, err := lock.Exclusive(lockPath)
	if err != nil {
		return e4serr.Wrap(err, "locking %s store", s.level)
	}
	defer lock.Release(fd)

	doc, err := s.read()
	if err != nil {
		return err
	}
	updated, err := fn(doc)
	if err != nil {
		return err
	}
	return s.write(updated)
}
