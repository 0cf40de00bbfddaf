package discovery

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campushub/notice-harvester/internal/harvest"
)

type fakeInstitutionStore struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[string]harvest.Institution
	updates int
}

func newFakeInstitutionStore() *fakeInstitutionStore {
	return &fakeInstitutionStore{rows: map[string]harvest.Institution{}}
}

func (s *fakeInstitutionStore) GetByCode(_ context.Context, code string) (harvest.Institution, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.rows[code]
	return inst, ok, nil
}

func (s *fakeInstitutionStore) GetByName(_ context.Context, name string) (harvest.Institution, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.rows {
		if inst.Name == name {
			return inst, true, nil
		}
	}
	return harvest.Institution{}, false, nil
}

func (s *fakeInstitutionStore) Upsert(_ context.Context, inst harvest.Institution) (harvest.Institution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[inst.Code]; ok {
		inst.ID = existing.ID
		if existing != inst {
			s.updates++
		}
		s.rows[inst.Code] = inst
		return inst, nil
	}
	s.nextID++
	inst.ID = s.nextID
	s.rows[inst.Code] = inst
	return inst, nil
}

func (s *fakeInstitutionStore) List(_ context.Context) ([]harvest.Institution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []harvest.Institution
	for _, inst := range s.rows {
		out = append(out, inst)
	}
	return out, nil
}

type subUnitKey struct {
	institutionID int64
	code          string
}

type fakeSubUnitStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[subUnitKey]harvest.SubUnit
}

func newFakeSubUnitStore() *fakeSubUnitStore {
	return &fakeSubUnitStore{rows: map[subUnitKey]harvest.SubUnit{}}
}

func (s *fakeSubUnitStore) GetByCode(_ context.Context, institutionID int64, code string) (harvest.SubUnit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	su, ok := s.rows[subUnitKey{institutionID, code}]
	return su, ok, nil
}

func (s *fakeSubUnitStore) Upsert(_ context.Context, su harvest.SubUnit) (harvest.SubUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subUnitKey{su.InstitutionID, su.Code}
	if existing, ok := s.rows[key]; ok {
		su.ID = existing.ID
		for _, board := range harvest.AllBoardTypes() {
			if _, set := su.Template(board); !set {
				if tpl, ok := existing.Template(board); ok {
					su.SetTemplate(board, tpl)
				}
			}
		}
		s.rows[key] = su
		return su, nil
	}
	s.nextID++
	su.ID = s.nextID
	s.rows[key] = su
	return su, nil
}

func (s *fakeSubUnitStore) ListByInstitution(_ context.Context, institutionID int64) ([]harvest.SubUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []harvest.SubUnit
	for key, su := range s.rows {
		if key.institutionID == institutionID {
			out = append(out, su)
		}
	}
	return out, nil
}

func (s *fakeSubUnitStore) ListAll(_ context.Context) ([]harvest.SubUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []harvest.SubUnit
	for _, su := range s.rows {
		out = append(out, su)
	}
	return out, nil
}

type fakeAdapter struct {
	kind  harvest.InstitutionKind
	insts []harvest.Institution
	units map[string][]harvest.SubUnit
}

func (a *fakeAdapter) Kind() harvest.InstitutionKind { return a.kind }

func (a *fakeAdapter) DiscoverInstitutions(context.Context, harvest.Target) ([]harvest.Institution, error) {
	return a.insts, nil
}

func (a *fakeAdapter) DiscoverSubUnits(_ context.Context, inst harvest.Institution) ([]harvest.SubUnit, error) {
	return a.units[inst.Code], nil
}

func TestResolveUpsertsWithoutDuplicating(t *testing.T) {
	t.Parallel()

	insts := newFakeInstitutionStore()
	subs := newFakeSubUnitStore()
	adapter := &fakeAdapter{
		kind: harvest.KindDirectoryPage,
		insts: []harvest.Institution{
			{Code: "law-1a2b3c", Name: "Law College", URL: "https://law.x", Kind: harvest.KindDirectoryPage},
		},
	}
	registry := Registry{harvest.KindDirectoryPage: adapter}
	r := NewResolver(registry, &fakeFetcher{}, insts, subs, nil)

	target := harvest.Target{Name: "uni", URL: "https://x.edu", Kind: harvest.KindDirectoryPage}
	require.NoError(t, r.Resolve(context.Background(), []harvest.Target{target}))
	require.Len(t, insts.rows, 1)

	// Rediscovery with a changed name updates the row in place.
	adapter.insts[0].Name = "College of Law"
	require.NoError(t, r.Resolve(context.Background(), []harvest.Target{target}))
	require.Len(t, insts.rows, 1)
	require.Equal(t, "College of Law", insts.rows["law-1a2b3c"].Name)
	require.Equal(t, int64(1), insts.rows["law-1a2b3c"].ID)
}

func TestResolveAppliesRepresentativeOverride(t *testing.T) {
	t.Parallel()

	insts := newFakeInstitutionStore()
	subs := newFakeSubUnitStore()
	adapter := &fakeAdapter{
		kind: harvest.KindDirectoryPage,
		insts: []harvest.Institution{
			{Code: "law-1a2b3c", Name: "Law College", URL: "https://law.x", Kind: harvest.KindDirectoryPage},
		},
	}
	registry := Registry{harvest.KindDirectoryPage: adapter}

	overrides, err := ParseOverrides(strings.NewReader("Law College,-,https://law.x/notice?page=3"))
	require.NoError(t, err)

	r := NewResolver(registry, &fakeFetcher{}, insts, subs, nil, WithOverrides(overrides))
	target := harvest.Target{Name: "uni", URL: "https://x.edu", Kind: harvest.KindDirectoryPage}
	require.NoError(t, r.Resolve(context.Background(), []harvest.Target{target}))

	units, err := subs.ListByInstitution(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, units, 1)
	su := units[0]
	require.Equal(t, "Law College (main notices)", su.Name)
	// The literal page number in the override line never leaks into the
	// template.
	require.Equal(t, "https://law.x/notice?page={page}", su.UndergradTpl)
	require.Equal(t, "https://law.x/notice?page={page}", su.AcademicTpl)
}

func TestResolveOverrideTargetsExistingSubUnit(t *testing.T) {
	t.Parallel()

	insts := newFakeInstitutionStore()
	subs := newFakeSubUnitStore()

	inst, err := insts.Upsert(context.Background(), harvest.Institution{
		Code: "eng-9x8y7z", Name: "Engineering College", URL: "https://eng.x",
	})
	require.NoError(t, err)
	_, err = subs.Upsert(context.Background(), harvest.SubUnit{
		InstitutionID: inst.ID, Code: "me-aa11bb", Name: "Mechanical Engineering", URL: "https://me.x",
	})
	require.NoError(t, err)

	overrides := []Override{{
		Institution: "Engineering College",
		SubUnit:     "Mechanical Engineering",
		URL:         "https://me.x/grad/board?p=4",
	}}
	r := NewResolver(Registry{}, &fakeFetcher{}, insts, subs, nil, WithOverrides(overrides))
	require.NoError(t, r.Resolve(context.Background(), nil))

	su, found, err := subs.GetByCode(context.Background(), inst.ID, "me-aa11bb")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "https://me.x/grad/board?page={page}", su.GradTpl)
	require.Len(t, subs.rows, 1)
}
