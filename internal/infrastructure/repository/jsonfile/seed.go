package jsonfile

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jortvara/caesync/internal/core/domain"
)

// seedFile is the YAML shape operators maintain by hand. Only the fields an
// operator actually edits are exposed; timestamps are assigned on load.
type seedFile struct {
	Types []seedType `yaml:"types"`
}

type seedType struct {
	TypeID   string   `yaml:"type_id"`
	Name     string   `yaml:"name"`
	Scope    string   `yaml:"scope"`
	Aliases  []string `yaml:"aliases"`
	Inactive bool     `yaml:"inactive"`
	Validity struct {
		Basis        string `yaml:"basis"`
		Mode         string `yaml:"mode"`
		EveryNMonths int    `yaml:"every_n_months"`
		ValidMonths  int    `yaml:"valid_months"`
		GraceDays    int    `yaml:"grace_days"`
	} `yaml:"validity"`
}

// SeedTypes loads document types from a YAML file into the store. Types that
// already exist are updated in place, so reseeding is safe.
func (s *Store) SeedTypes(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}

	loaded := 0
	for _, st := range seed.Types {
		t, err := st.toDomain()
		if err != nil {
			return loaded, fmt.Errorf("seed type %q: %w", st.TypeID, err)
		}
		if _, lookErr := s.GetType(ctx, t.TypeID); lookErr == nil {
			if err := s.UpdateType(ctx, t); err != nil {
				return loaded, err
			}
		} else if err := s.CreateType(ctx, t); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

func (st seedType) toDomain() (*domain.DocumentType, error) {
	if st.TypeID == "" {
		return nil, fmt.Errorf("missing type_id")
	}
	scope := domain.Scope(st.Scope)
	if scope != domain.ScopeCompany && scope != domain.ScopeWorker {
		return nil, fmt.Errorf("unknown scope %q", st.Scope)
	}
	basis := domain.ValidityBasis(st.Validity.Basis)
	switch basis {
	case domain.BasisIssueDate, domain.BasisNameDate, domain.BasisManual:
	default:
		return nil, fmt.Errorf("unknown validity basis %q", st.Validity.Basis)
	}
	mode := domain.ValidityMode(st.Validity.Mode)
	switch mode {
	case domain.ModeMonthly, domain.ModeAnnual, domain.ModeFixedEndDate:
	default:
		return nil, fmt.Errorf("unknown validity mode %q", st.Validity.Mode)
	}

	return &domain.DocumentType{
		TypeID: st.TypeID,
		Name:   st.Name,
		Scope:  scope,
		ValidityPolicy: domain.ValidityPolicy{
			Basis:        basis,
			Mode:         mode,
			EveryNMonths: st.Validity.EveryNMonths,
			ValidMonths:  st.Validity.ValidMonths,
			GraceDays:    st.Validity.GraceDays,
		},
		PlatformAliases: st.Aliases,
		Active:          !st.Inactive,
	}, nil
}
