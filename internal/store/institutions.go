package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campushub/notice-harvester/internal/harvest"
)

// InstitutionStore persists institutions in Postgres.
type InstitutionStore struct {
	pool querier
}

// NewInstitutionStore constructs a store on an existing pool.
func NewInstitutionStore(pool querier) *InstitutionStore {
	return &InstitutionStore{pool: pool}
}

const selectInstitution = `
SELECT id, code, name, url, kind, created_at
FROM institutions`

func scanInstitution(row pgx.Row) (harvest.Institution, error) {
	var (
		inst harvest.Institution
		kind string
	)
	err := row.Scan(&inst.ID, &inst.Code, &inst.Name, &inst.URL, &kind, &inst.CreatedAt)
	if err != nil {
		return harvest.Institution{}, err
	}
	inst.Kind = harvest.InstitutionKind(kind)
	return inst, nil
}

// GetByCode looks up an institution by its unique code.
func (s *InstitutionStore) GetByCode(ctx context.Context, code string) (harvest.Institution, bool, error) {
	row := s.pool.QueryRow(ctx, selectInstitution+` WHERE code = $1`, code)
	inst, err := scanInstitution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return harvest.Institution{}, false, nil
	}
	if err != nil {
		return harvest.Institution{}, false, fmt.Errorf("get institution by code: %w", err)
	}
	return inst, true, nil
}

// GetByName looks up an institution by its display name. Names are unique in
// practice but not enforced; the first match wins.
func (s *InstitutionStore) GetByName(ctx context.Context, name string) (harvest.Institution, bool, error) {
	row := s.pool.QueryRow(ctx, selectInstitution+` WHERE name = $1 ORDER BY id LIMIT 1`, name)
	inst, err := scanInstitution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return harvest.Institution{}, false, nil
	}
	if err != nil {
		return harvest.Institution{}, false, fmt.Errorf("get institution by name: %w", err)
	}
	return inst, true, nil
}

// Upsert reconciles the row keyed by code: insert when absent, update only
// when a field actually changed, otherwise leave the row untouched.
func (s *InstitutionStore) Upsert(ctx context.Context, inst harvest.Institution) (harvest.Institution, error) {
	existing, found, err := s.GetByCode(ctx, inst.Code)
	if err != nil {
		return harvest.Institution{}, err
	}
	if !found {
		row := s.pool.QueryRow(ctx, `
INSERT INTO institutions (code, name, url, kind)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`,
			inst.Code, inst.Name, inst.URL, string(inst.Kind))
		if err := row.Scan(&inst.ID, &inst.CreatedAt); err != nil {
			return harvest.Institution{}, fmt.Errorf("insert institution %s: %w", inst.Code, err)
		}
		return inst, nil
	}

	inst.ID = existing.ID
	inst.CreatedAt = existing.CreatedAt
	if existing.Name == inst.Name && existing.URL == inst.URL && existing.Kind == inst.Kind {
		return existing, nil
	}
	if _, err := s.pool.Exec(ctx, `
UPDATE institutions SET name = $2, url = $3, kind = $4 WHERE id = $1`,
		inst.ID, inst.Name, inst.URL, string(inst.Kind)); err != nil {
		return harvest.Institution{}, fmt.Errorf("update institution %s: %w", inst.Code, err)
	}
	return inst, nil
}

// List returns all institutions ordered by code.
func (s *InstitutionStore) List(ctx context.Context) ([]harvest.Institution, error) {
	rows, err := s.pool.Query(ctx, selectInstitution+` ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	defer rows.Close()

	var out []harvest.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan institution: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	return out, nil
}
