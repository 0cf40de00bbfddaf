package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campushub/notice-harvester/internal/harvest"
)

// SubUnitStore persists sub-units in Postgres.
type SubUnitStore struct {
	pool querier
}

// NewSubUnitStore constructs a store on an existing pool.
func NewSubUnitStore(pool querier) *SubUnitStore {
	return &SubUnitStore{pool: pool}
}

const selectSubUnit = `
SELECT id, institution_id, code, name, url, kind,
       academic_tpl, undergrad_tpl, grad_tpl, keyword_grad_tpl, created_at
FROM sub_units`

func scanSubUnit(row pgx.Row) (harvest.SubUnit, error) {
	var su harvest.SubUnit
	err := row.Scan(&su.ID, &su.InstitutionID, &su.Code, &su.Name, &su.URL, &su.Kind,
		&su.AcademicTpl, &su.UndergradTpl, &su.GradTpl, &su.KeywordGradTpl, &su.CreatedAt)
	if err != nil {
		return harvest.SubUnit{}, err
	}
	return su, nil
}

// GetByCode looks up a sub-unit by its (institution, code) pair.
func (s *SubUnitStore) GetByCode(ctx context.Context, institutionID int64, code string) (harvest.SubUnit, bool, error) {
	row := s.pool.QueryRow(ctx, selectSubUnit+` WHERE institution_id = $1 AND code = $2`, institutionID, code)
	su, err := scanSubUnit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return harvest.SubUnit{}, false, nil
	}
	if err != nil {
		return harvest.SubUnit{}, false, fmt.Errorf("get sub-unit by code: %w", err)
	}
	return su, true, nil
}

// Upsert reconciles the row keyed by (institution, code). An empty incoming
// template never clears a stored one; templates are only added or replaced.
func (s *SubUnitStore) Upsert(ctx context.Context, su harvest.SubUnit) (harvest.SubUnit, error) {
	existing, found, err := s.GetByCode(ctx, su.InstitutionID, su.Code)
	if err != nil {
		return harvest.SubUnit{}, err
	}
	if !found {
		row := s.pool.QueryRow(ctx, `
INSERT INTO sub_units (institution_id, code, name, url, kind,
                       academic_tpl, undergrad_tpl, grad_tpl, keyword_grad_tpl)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`,
			su.InstitutionID, su.Code, su.Name, su.URL, su.Kind,
			su.AcademicTpl, su.UndergradTpl, su.GradTpl, su.KeywordGradTpl)
		if err := row.Scan(&su.ID, &su.CreatedAt); err != nil {
			return harvest.SubUnit{}, fmt.Errorf("insert sub-unit %s: %w", su.Code, err)
		}
		return su, nil
	}

	merged := existing
	merged.Name = su.Name
	merged.URL = su.URL
	if su.Kind != "" {
		merged.Kind = su.Kind
	}
	for _, board := range harvest.AllBoardTypes() {
		if tpl, ok := su.Template(board); ok {
			merged.SetTemplate(board, tpl)
		}
	}
	if merged == existing {
		return existing, nil
	}
	if _, err := s.pool.Exec(ctx, `
UPDATE sub_units
SET name = $2, url = $3, kind = $4,
    academic_tpl = $5, undergrad_tpl = $6, grad_tpl = $7, keyword_grad_tpl = $8
WHERE id = $1`,
		merged.ID, merged.Name, merged.URL, merged.Kind,
		merged.AcademicTpl, merged.UndergradTpl, merged.GradTpl, merged.KeywordGradTpl); err != nil {
		return harvest.SubUnit{}, fmt.Errorf("update sub-unit %s: %w", su.Code, err)
	}
	return merged, nil
}

// ListByInstitution returns the institution's sub-units ordered by code.
func (s *SubUnitStore) ListByInstitution(ctx context.Context, institutionID int64) ([]harvest.SubUnit, error) {
	rows, err := s.pool.Query(ctx, selectSubUnit+` WHERE institution_id = $1 ORDER BY code`, institutionID)
	if err != nil {
		return nil, fmt.Errorf("list sub-units: %w", err)
	}
	defer rows.Close()
	return collectSubUnits(rows)
}

// ListAll returns every sub-unit across institutions ordered by institution
// and code, which fixes the fan-out order of a harvest cycle.
func (s *SubUnitStore) ListAll(ctx context.Context) ([]harvest.SubUnit, error) {
	rows, err := s.pool.Query(ctx, selectSubUnit+` ORDER BY institution_id, code`)
	if err != nil {
		return nil, fmt.Errorf("list all sub-units: %w", err)
	}
	defer rows.Close()
	return collectSubUnits(rows)
}

func collectSubUnits(rows pgx.Rows) ([]harvest.SubUnit, error) {
	var out []harvest.SubUnit
	for rows.Next() {
		su, err := scanSubUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sub-unit: %w", err)
		}
		out = append(out, su)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect sub-units: %w", err)
	}
	return out, nil
}
