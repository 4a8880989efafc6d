// Package catalog owns the species reference catalog: a small label to
// fingerprint mapping persisted as one JSON file, plus the in-memory FIFO
// queue of fingerprints waiting to be named. All mutations go through the
// Store and every successful mutation rewrites the whole file.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"critterlens/internal/fingerprint"
	"critterlens/internal/logging"
	"critterlens/internal/model"
)

var (
	ErrNoPending = errors.New("no pending images to assign")
	ErrNotFound  = errors.New("label not in catalog")
)

// Mirror receives a copy of the catalog after every mutation and serves it
// back when the local file is gone. Satisfied by the s3 client; nil disables
// mirroring.
type Mirror interface {
	ReadJSON(ctx context.Context, key string, out any) (bool, error)
	WriteJSON(ctx context.Context, key string, v any) error
}

// Pending is a stored-but-unnamed fingerprint. Raw keeps the original image
// bytes so a reference copy can be uploaded once the name arrives.
type Pending struct {
	Fingerprint model.Fingerprint
	Raw         []byte
	AddedAt     time.Time
}

type Store struct {
	path      string
	strat     fingerprint.Strategy
	mirror    Mirror
	mirrorKey string
	log       *logging.Logger

	mu      sync.Mutex
	index   model.CatalogIndex
	pending []Pending
}

// Open reads the catalog file at path. When the file does not exist it falls
// back to the mirror copy (so a lost disk is restored from the last backup)
// and only then starts empty. A non-empty catalog written by a different
// strategy is refused: hashes and vectors do not compare.
func Open(ctx context.Context, path string, strat fingerprint.Strategy, mirror Mirror, mirrorKey string, log *logging.Logger) (*Store, error) {
	s := &Store{
		path:      path,
		strat:     strat,
		mirror:    mirror,
		mirrorKey: mirrorKey,
		log:       log,
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if mirror != nil {
			found, merr := mirror.ReadJSON(ctx, mirrorKey, &s.index)
			if merr != nil {
				return nil, fmt.Errorf("restore catalog from mirror %s: %w", mirrorKey, merr)
			}
			if found {
				if err := s.adoptIndex("mirror " + mirrorKey); err != nil {
					return nil, err
				}
				if err := s.writeFileLocked(); err != nil {
					return nil, err
				}
				log.Infof("catalog: restored %d entries from mirror key %s", len(s.index.Items), mirrorKey)
				return s, nil
			}
		}
		s.index = model.CatalogIndex{Strategy: strat.Name()}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if err := json.Unmarshal(b, &s.index); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := s.adoptIndex(path); err != nil {
		return nil, err
	}
	return s, nil
}

// adoptIndex validates a freshly loaded index and normalizes it for use.
// Labels must be unique and non-empty; nothing else ever checks them again.
func (s *Store) adoptIndex(origin string) error {
	if s.index.Strategy != "" && s.index.Strategy != s.strat.Name() {
		return fmt.Errorf("catalog %s was built with strategy %q, running %q", origin, s.index.Strategy, s.strat.Name())
	}
	seen := make(map[string]bool, len(s.index.Items))
	for _, item := range s.index.Items {
		if item.Label == "" {
			return fmt.Errorf("catalog %s: entry with empty label", origin)
		}
		if seen[item.Label] {
			return fmt.Errorf("catalog %s: duplicate label %q", origin, item.Label)
		}
		seen[item.Label] = true
	}
	s.index.Strategy = s.strat.Name()
	sortItems(s.index.Items)
	return nil
}

// Nearest scans the whole catalog and returns the entry with the best score
// against the query, with found=false on an empty catalog. Items are kept
// sorted by label and the first best score wins, so ties are reproducible.
func (s *Store) Nearest(query model.Fingerprint) (best model.CatalogEntry, score float64, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.index.Items {
		sc, serr := s.strat.Score(query, item.Fingerprint)
		if serr != nil {
			return model.CatalogEntry{}, 0, false, serr
		}
		if !found || s.strat.Better(sc, score) {
			best, score, found = item, sc, true
		}
	}
	return best, score, found, nil
}

// Enqueue appends a fingerprint to the pending queue and returns the new
// queue length. The queue lives in memory only.
func (s *Store) Enqueue(fp model.Fingerprint, raw []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, Pending{Fingerprint: fp, Raw: raw, AddedAt: time.Now()})
	return len(s.pending)
}

// Assign pops the oldest pending fingerprint, stores it under label
// (overwriting any existing entry) and rewrites the catalog file. It returns
// the stored entry and the raw image bytes it was computed from.
func (s *Store) Assign(ctx context.Context, label string) (model.CatalogEntry, []byte, error) {
	if label == "" {
		return model.CatalogEntry{}, nil, errors.New("empty label")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return model.CatalogEntry{}, nil, ErrNoPending
	}

	p := s.pending[0]
	s.pending = s.pending[1:]

	entry := model.CatalogEntry{
		Label:       label,
		Fingerprint: p.Fingerprint,
		AddedAt:     time.Now(),
	}

	replaced := false
	for i := range s.index.Items {
		if s.index.Items[i].Label == label {
			s.index.Items[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		s.index.Items = append(s.index.Items, entry)
		sortItems(s.index.Items)
	}

	if err := s.flushLocked(ctx); err != nil {
		return model.CatalogEntry{}, nil, err
	}
	return entry, p.Raw, nil
}

// Remove deletes a catalog entry and rewrites the file.
func (s *Store) Remove(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := lo.Reject(s.index.Items, func(e model.CatalogEntry, _ int) bool {
		return e.Label == label
	})
	if len(kept) == len(s.index.Items) {
		return ErrNotFound
	}
	s.index.Items = kept
	return s.flushLocked(ctx)
}

// Labels returns all catalog labels in sorted order.
func (s *Store) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return lo.Map(s.index.Items, func(e model.CatalogEntry, _ int) string {
		return e.Label
	})
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index.Items)
}

func (s *Store) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Snapshot returns a deep-enough copy of the index for backup writes.
func (s *Store) Snapshot() model.CatalogIndex {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.index
	out.Items = append([]model.CatalogEntry(nil), s.index.Items...)
	return out
}

// flushLocked rewrites the whole catalog file and mirrors it when
// configured. Caller holds s.mu.
func (s *Store) flushLocked(ctx context.Context) error {
	s.index.UpdatedAt = time.Now()

	if err := s.writeFileLocked(); err != nil {
		return err
	}

	if s.mirror != nil {
		if err := s.mirror.WriteJSON(ctx, s.mirrorKey, &s.index); err != nil {
			// Mirror failures never lose the local write.
			s.log.Warnf("catalog: mirror write failed: %v", err)
		}
	}
	return nil
}

// writeFileLocked writes the index to the catalog file via temp file plus
// rename, so readers never see a half-written catalog.
func (s *Store) writeFileLocked() error {
	b, err := json.MarshalIndent(&s.index, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

func sortItems(items []model.CatalogEntry) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Label < items[j].Label
	})
}
