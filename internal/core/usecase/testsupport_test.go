package usecase

import (
	"context"
	"errors"
	"io"
	"slices"
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func fixedNow() time.Time {
	return time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)
}

type fakeCatalog struct {
	types   map[string]domain.DocumentType
	docs    []domain.DocumentInstance
	loc     string
	listErr error
	typeErr error
}

func (f *fakeCatalog) GetType(_ context.Context, id string) (*domain.DocumentType, error) {
	if f.typeErr != nil {
		return nil, f.typeErr
	}
	t, ok := f.types[id]
	if !ok {
		return nil, domain.ErrTypeNotFound
	}
	return &t, nil
}

func (f *fakeCatalog) ListTypes(_ context.Context, includeInactive bool) ([]domain.DocumentType, error) {
	var out []domain.DocumentType
	for _, t := range f.types {
		if t.Active || includeInactive {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b domain.DocumentType) int {
		if a.TypeID < b.TypeID {
			return -1
		}
		return 1
	})
	return out, nil
}

func (f *fakeCatalog) CreateType(_ context.Context, t *domain.DocumentType) error {
	f.types[t.TypeID] = *t
	return nil
}

func (f *fakeCatalog) UpdateType(_ context.Context, t *domain.DocumentType) error {
	f.types[t.TypeID] = *t
	return nil
}

func (f *fakeCatalog) ListDocuments(_ context.Context, filter domain.DocumentFilter) ([]domain.DocumentInstance, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.DocumentInstance
	for _, d := range f.docs {
		if len(filter.TypeIDs) > 0 && !slices.Contains(filter.TypeIDs, d.TypeID) {
			continue
		}
		if filter.CompanyKey != "" && d.CompanyKey != filter.CompanyKey {
			continue
		}
		if filter.PersonKey != "" && d.PersonKey != filter.PersonKey {
			continue
		}
		if filter.PeriodKey != "" && d.PeriodKey != filter.PeriodKey {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, d.Status) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeCatalog) GetDocument(_ context.Context, id string) (*domain.DocumentInstance, error) {
	for _, d := range f.docs {
		if d.DocID == id {
			return &d, nil
		}
	}
	return nil, domain.ErrDocumentNotFound
}

func (f *fakeCatalog) SaveDocument(_ context.Context, doc *domain.DocumentInstance) error {
	for i, d := range f.docs {
		if d.DocID == doc.DocID {
			f.docs[i] = *doc
			return nil
		}
	}
	f.docs = append(f.docs, *doc)
	return nil
}

func (f *fakeCatalog) Location() string { return f.loc }

type fakeHints struct {
	hints map[string]domain.LearnedHint
	puts  int
}

func newFakeHints() *fakeHints {
	return &fakeHints{hints: make(map[string]domain.LearnedHint)}
}

func (f *fakeHints) Put(_ context.Context, hint domain.LearnedHint) error {
	f.puts++
	if _, ok := f.hints[hint.HintID]; ok {
		return nil
	}
	f.hints[hint.HintID] = hint
	return nil
}

func (f *fakeHints) Disable(_ context.Context, id string) error {
	h, ok := f.hints[id]
	if !ok {
		return domain.ErrHintNotFound
	}
	h.Enabled = false
	f.hints[id] = h
	return nil
}

func (f *fakeHints) ListEnabled(_ context.Context, _ domain.HintContext) ([]domain.LearnedHint, error) {
	var out []domain.LearnedHint
	for _, h := range f.hints {
		if h.Enabled {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHints) ListHints(_ context.Context, includeDisabled bool) ([]domain.LearnedHint, error) {
	var out []domain.LearnedHint
	for _, h := range f.hints {
		if h.Enabled || includeDisabled {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeArtifacts struct {
	present  map[string]bool
	probeErr error
	saved    []string
}

func (f *fakeArtifacts) Save(_ context.Context, key string, _ io.Reader) error {
	if f.present == nil {
		f.present = make(map[string]bool)
	}
	f.present[key] = true
	f.saved = append(f.saved, key)
	return nil
}

func (f *fakeArtifacts) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeArtifacts) Exists(_ context.Context, key string) (bool, error) {
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return f.present[key], nil
}

func (f *fakeArtifacts) ContentHash(_ context.Context, key string) (string, error) {
	if !f.present[key] {
		return "", errors.New("missing artifact")
	}
	return "hash-" + key, nil
}
