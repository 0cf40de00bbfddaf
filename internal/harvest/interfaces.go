package harvest

import (
	"context"
	"time"
)

// InstitutionStore persists institutions keyed by their globally unique code.
type InstitutionStore interface {
	GetByCode(ctx context.Context, code string) (Institution, bool, error)
	GetByName(ctx context.Context, name string) (Institution, bool, error)
	// Upsert reconciles the row by code: insert when absent, update only when
	// a field actually changed. The returned value carries the row ID.
	Upsert(ctx context.Context, inst Institution) (Institution, error)
	List(ctx context.Context) ([]Institution, error)
}

// SubUnitStore persists sub-units keyed by (institution, code).
type SubUnitStore interface {
	GetByCode(ctx context.Context, institutionID int64, code string) (SubUnit, bool, error)
	Upsert(ctx context.Context, su SubUnit) (SubUnit, error)
	ListByInstitution(ctx context.Context, institutionID int64) ([]SubUnit, error)
	ListAll(ctx context.Context) ([]SubUnit, error)
}

// NoticeStore persists notice records append-only.
type NoticeStore interface {
	// InsertBatch writes records one at a time, relying on the composite
	// uniqueness constraint to turn re-insertion into a no-op. It returns the
	// number of rows actually inserted.
	InsertBatch(ctx context.Context, records []NoticeRecord) (int, error)
	// MaxPostID returns the harvest cursor for the pair: the highest numeric
	// post id, or the most recently crawled opaque id when no numeric ids
	// exist, or "" when the pair has no records.
	MaxPostID(ctx context.Context, subUnitID int64, board BoardType) (string, error)
	List(ctx context.Context, subUnitID int64, board BoardType, limit int) ([]NoticeRecord, error)
}

// Extractor turns one listing page into normalized records.
type Extractor interface {
	ExtractPage(ctx context.Context, pageURL string) ([]Record, Source, error)
}

// Publisher pushes harvested-batch events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
