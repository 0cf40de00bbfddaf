package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campushub/notice-harvester/internal/harvest"
)

// NoticeStore persists notice records in Postgres. Records are append-only;
// the composite uniqueness constraint on (sub_unit_id, board_type, post_id)
// makes re-insertion a no-op.
type NoticeStore struct {
	pool querier
}

// NewNoticeStore constructs a store on an existing pool.
func NewNoticeStore(pool querier) *NoticeStore {
	return &NoticeStore{pool: pool}
}

const insertNotice = `
INSERT INTO notice_records (sub_unit_id, board_type, post_id, title, url,
                            posted_at, crawled_at, source_display_name)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (sub_unit_id, board_type, post_id) DO NOTHING`

// InsertBatch writes records one at a time and returns how many rows were
// actually inserted. Duplicates count as zero, not as errors.
func (s *NoticeStore) InsertBatch(ctx context.Context, records []harvest.NoticeRecord) (int, error) {
	inserted := 0
	for _, rec := range records {
		tag, err := s.pool.Exec(ctx, insertNotice,
			rec.SubUnitID, string(rec.BoardType), rec.PostID, rec.Title, rec.URL,
			rec.PostedAt, rec.CrawledAt, rec.SourceDisplayName)
		if err != nil {
			return inserted, fmt.Errorf("insert notice %s: %w", rec.PostID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

const maxNumericPostID = `
SELECT post_id FROM notice_records
WHERE sub_unit_id = $1 AND board_type = $2 AND post_id ~ '^[0-9]+$'
ORDER BY post_id::bigint DESC
LIMIT 1`

const latestOpaquePostID = `
SELECT post_id FROM notice_records
WHERE sub_unit_id = $1 AND board_type = $2
ORDER BY crawled_at DESC, id DESC
LIMIT 1`

// MaxPostID returns the harvest cursor for the pair: the highest numeric post
// id, or the most recently crawled id when the pair holds only opaque ids, or
// "" when the pair has no records at all.
func (s *NoticeStore) MaxPostID(ctx context.Context, subUnitID int64, board harvest.BoardType) (string, error) {
	var postID string
	err := s.pool.QueryRow(ctx, maxNumericPostID, subUnitID, string(board)).Scan(&postID)
	if err == nil {
		return postID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("max numeric post id: %w", err)
	}
	err = s.pool.QueryRow(ctx, latestOpaquePostID, subUnitID, string(board)).Scan(&postID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest post id: %w", err)
	}
	return postID, nil
}

const selectNotices = `
SELECT id, sub_unit_id, board_type, post_id, title, url,
       posted_at, crawled_at, source_display_name
FROM notice_records
WHERE sub_unit_id = $1 AND board_type = $2
ORDER BY posted_at DESC, id DESC
LIMIT $3`

// List returns the pair's most recent records, newest first.
func (s *NoticeStore) List(ctx context.Context, subUnitID int64, board harvest.BoardType, limit int) ([]harvest.NoticeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, selectNotices, subUnitID, string(board), limit)
	if err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	defer rows.Close()

	var out []harvest.NoticeRecord
	for rows.Next() {
		var (
			rec   harvest.NoticeRecord
			board string
		)
		if err := rows.Scan(&rec.ID, &rec.SubUnitID, &board, &rec.PostID, &rec.Title,
			&rec.URL, &rec.PostedAt, &rec.CrawledAt, &rec.SourceDisplayName); err != nil {
			return nil, fmt.Errorf("scan notice: %w", err)
		}
		rec.BoardType = harvest.BoardType(board)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	return out, nil
}
