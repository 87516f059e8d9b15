package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
)

const (
	catalogFile = "catalog.json"
	hintsFile   = "hints.json"
)

// catalogState is the on-disk shape of the catalog file.
type catalogState struct {
	Types     []domain.DocumentType     `json:"types"`
	Documents []domain.DocumentInstance `json:"documents"`
}

type hintState struct {
	Hints []domain.LearnedHint `json:"hints"`
}

// Store is a single-writer JSON catalog kept under one directory. All state
// lives in memory; every mutation rewrites the backing file atomically (stage
// to a temp file in the same directory, then rename), so a crash mid-write
// never leaves a truncated catalog behind.
type Store struct {
	mu   sync.RWMutex
	dir  string
	cat  catalogState
	hint hintState
}

func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "./data/catalog"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}

	s := &Store{dir: abs}
	if err := loadState(filepath.Join(abs, catalogFile), &s.cat); err != nil {
		return nil, err
	}
	if err := loadState(filepath.Join(abs, hintsFile), &s.hint); err != nil {
		return nil, err
	}
	return s, nil
}

func loadState(path string, out any) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeState stages the encoded state next to the target file and renames it
// into place. A round-trip decode of the staged bytes into the state's own
// type guards against writing state the store could not read back.
func writeState[T any](path string, state T) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	var check T
	if err := json.Unmarshal(raw, &check); err != nil {
		return fmt.Errorf("validate %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".staged-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", filepath.Base(path), err)
	}
	defer func() {
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(raw); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close staged %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) flushCatalog() error {
	return writeState(filepath.Join(s.dir, catalogFile), s.cat)
}

func (s *Store) flushHints() error {
	return writeState(filepath.Join(s.dir, hintsFile), s.hint)
}

func (s *Store) Location() string { return s.dir }

func (s *Store) GetType(_ context.Context, typeID string) (*domain.DocumentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.cat.Types {
		if s.cat.Types[i].TypeID == typeID {
			t := s.cat.Types[i]
			return &t, nil
		}
	}
	return nil, domain.WrapError(domain.ErrTypeNotFound, "jsonfile.GetType", fmt.Errorf("type %q", typeID))
}

func (s *Store) ListTypes(_ context.Context, includeInactive bool) ([]domain.DocumentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DocumentType, 0, len(s.cat.Types))
	for _, t := range s.cat.Types {
		if !includeInactive && !t.Active {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out, nil
}

func (s *Store) CreateType(_ context.Context, t *domain.DocumentType) error {
	if t == nil || t.TypeID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "jsonfile.CreateType", fmt.Errorf("missing type id"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cat.Types {
		if s.cat.Types[i].TypeID == t.TypeID {
			return domain.WrapError(domain.ErrInvalidInput, "jsonfile.CreateType", fmt.Errorf("type %q already exists", t.TypeID))
		}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.UpdatedAt = t.CreatedAt
	s.cat.Types = append(s.cat.Types, *t)
	return s.flushCatalog()
}

func (s *Store) UpdateType(_ context.Context, t *domain.DocumentType) error {
	if t == nil || t.TypeID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "jsonfile.UpdateType", fmt.Errorf("missing type id"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cat.Types {
		if s.cat.Types[i].TypeID == t.TypeID {
			t.CreatedAt = s.cat.Types[i].CreatedAt
			t.UpdatedAt = time.Now().UTC()
			s.cat.Types[i] = *t
			return s.flushCatalog()
		}
	}
	return domain.WrapError(domain.ErrTypeNotFound, "jsonfile.UpdateType", fmt.Errorf("type %q", t.TypeID))
}

func (s *Store) ListDocuments(_ context.Context, filter domain.DocumentFilter) ([]domain.DocumentInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DocumentInstance, 0, len(s.cat.Documents))
	for _, d := range s.cat.Documents {
		if matchesFilter(d, filter) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out, nil
}

func matchesFilter(d domain.DocumentInstance, f domain.DocumentFilter) bool {
	if len(f.TypeIDs) > 0 {
		found := false
		for _, id := range f.TypeIDs {
			if d.TypeID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CompanyKey != "" && d.CompanyKey != f.CompanyKey {
		return false
	}
	if f.PersonKey != "" && d.PersonKey != f.PersonKey {
		return false
	}
	if f.PeriodKey != "" && d.PeriodKey != f.PeriodKey {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if d.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Store) GetDocument(_ context.Context, docID string) (*domain.DocumentInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.cat.Documents {
		if s.cat.Documents[i].DocID == docID {
			d := s.cat.Documents[i]
			return &d, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "jsonfile.GetDocument", fmt.Errorf("document %q", docID))
}

// SaveDocument upserts. Status may never regress along the lifecycle.
func (s *Store) SaveDocument(_ context.Context, doc *domain.DocumentInstance) error {
	if doc == nil || doc.DocID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "jsonfile.SaveDocument", fmt.Errorf("missing doc id"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for i := range s.cat.Documents {
		if s.cat.Documents[i].DocID == doc.DocID {
			if !domain.CanTransition(s.cat.Documents[i].Status, doc.Status) {
				return domain.WrapError(domain.ErrInvalidInput, "jsonfile.SaveDocument",
					fmt.Errorf("status %s cannot regress to %s", s.cat.Documents[i].Status, doc.Status))
			}
			doc.CreatedAt = s.cat.Documents[i].CreatedAt
			doc.UpdatedAt = now
			s.cat.Documents[i] = *doc
			return s.flushCatalog()
		}
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.cat.Documents = append(s.cat.Documents, *doc)
	return s.flushCatalog()
}

// Put stores a hint keyed by its content-addressed id. Re-putting the same
// hint is a no-op, so confirmations are idempotent.
func (s *Store) Put(_ context.Context, hint domain.LearnedHint) error {
	if hint.HintID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "jsonfile.Put", fmt.Errorf("missing hint id"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.hint.Hints {
		if s.hint.Hints[i].HintID == hint.HintID {
			return nil
		}
	}
	s.hint.Hints = append(s.hint.Hints, hint)
	return s.flushHints()
}

func (s *Store) Disable(_ context.Context, hintID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.hint.Hints {
		if s.hint.Hints[i].HintID == hintID {
			if !s.hint.Hints[i].Enabled {
				return nil
			}
			now := time.Now().UTC()
			s.hint.Hints[i].Enabled = false
			s.hint.Hints[i].DisabledAt = &now
			return s.flushHints()
		}
	}
	return domain.WrapError(domain.ErrHintNotFound, "jsonfile.Disable", fmt.Errorf("hint %q", hintID))
}

func (s *Store) ListEnabled(_ context.Context, hctx domain.HintContext) ([]domain.LearnedHint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LearnedHint
	for _, h := range s.hint.Hints {
		if h.Enabled && h.Matches(hctx) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HintID < out[j].HintID })
	return out, nil
}

func (s *Store) ListHints(_ context.Context, includeDisabled bool) ([]domain.LearnedHint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LearnedHint
	for _, h := range s.hint.Hints {
		if !includeDisabled && !h.Enabled {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HintID < out[j].HintID })
	return out, nil
}
