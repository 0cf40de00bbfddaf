package controller

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campushub/notice-harvester/internal/harvest"
)

type fakeExtractor struct {
	mu    sync.Mutex
	pages map[string][]harvest.Record
	errs  map[string]error
	calls []string
}

func (f *fakeExtractor) ExtractPage(_ context.Context, pageURL string) ([]harvest.Record, harvest.Source, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageURL)
	f.mu.Unlock()
	if err, ok := f.errs[pageURL]; ok {
		return nil, harvest.SourceMarkup, err
	}
	return f.pages[pageURL], harvest.SourceMarkup, nil
}

type noticeKey struct {
	subUnitID int64
	board     harvest.BoardType
	postID    string
}

type fakeNoticeStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[noticeKey]harvest.NoticeRecord
}

func newFakeNoticeStore() *fakeNoticeStore {
	return &fakeNoticeStore{rows: map[noticeKey]harvest.NoticeRecord{}}
}

func (s *fakeNoticeStore) InsertBatch(_ context.Context, records []harvest.NoticeRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, rec := range records {
		key := noticeKey{rec.SubUnitID, rec.BoardType, rec.PostID}
		if _, dup := s.rows[key]; dup {
			continue
		}
		s.nextID++
		rec.ID = s.nextID
		s.rows[key] = rec
		inserted++
	}
	return inserted, nil
}

func (s *fakeNoticeStore) MaxPostID(_ context.Context, subUnitID int64, board harvest.BoardType) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The fake only stores numeric ids.
	max := int64(-1)
	out := ""
	for key := range s.rows {
		if key.subUnitID != subUnitID || key.board != board {
			continue
		}
		n, err := strconv.ParseInt(key.postID, 10, 64)
		if err == nil && n > max {
			max = n
			out = key.postID
		}
	}
	return out, nil
}

func (s *fakeNoticeStore) List(_ context.Context, subUnitID int64, board harvest.BoardType, _ int) ([]harvest.NoticeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []harvest.NoticeRecord
	for key, rec := range s.rows {
		if key.subUnitID == subUnitID && key.board == board {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func records(ids ...string) []harvest.Record {
	posted := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]harvest.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, harvest.Record{
			ID:       id,
			Title:    "Notice " + id,
			URL:      "https://cs.x.edu/view?no=" + id,
			PostedAt: posted,
		})
	}
	return out
}

func testSubUnit() harvest.SubUnit {
	return harvest.SubUnit{
		ID:           31,
		Code:         "cs-9f2",
		Name:         "Computer Science",
		UndergradTpl: "https://cs.x.edu/board?page={page}",
	}
}

func TestHarvestBoardStopsAtCursor(t *testing.T) {
	t.Parallel()

	store := newFakeNoticeStore()
	_, err := store.InsertBatch(context.Background(), []harvest.NoticeRecord{{
		SubUnitID: 31, BoardType: harvest.BoardUndergraduate, PostID: "100",
	}})
	require.NoError(t, err)

	ext := &fakeExtractor{pages: map[string][]harvest.Record{
		"https://cs.x.edu/board?page=1": records("105", "104", "103", "99"),
		"https://cs.x.edu/board?page=2": records("98", "97"),
	}}
	c := New(Config{PageCap: 5}, ext, store, nil, WithClock(fixedClock{time.Unix(1700000000, 0)}))

	result, err := c.HarvestBoard(context.Background(), testSubUnit(), harvest.BoardUndergraduate)
	require.NoError(t, err)
	require.Equal(t, 3, result.Inserted)
	// The stop record ends the walk; page 2 is never requested.
	require.Equal(t, []string{"https://cs.x.edu/board?page=1"}, ext.calls)

	for _, id := range []string{"105", "104", "103"} {
		_, ok := store.rows[noticeKey{31, harvest.BoardUndergraduate, id}]
		require.True(t, ok, id)
	}
	_, ok := store.rows[noticeKey{31, harvest.BoardUndergraduate, "99"}]
	require.False(t, ok)
}

func TestHarvestBoardIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeNoticeStore()
	ext := &fakeExtractor{pages: map[string][]harvest.Record{
		"https://cs.x.edu/board?page=1": records("105", "104"),
	}}
	c := New(Config{PageCap: 3}, ext, store, nil)

	first, err := c.HarvestBoard(context.Background(), testSubUnit(), harvest.BoardUndergraduate)
	require.NoError(t, err)
	require.Equal(t, 2, first.Inserted)

	second, err := c.HarvestBoard(context.Background(), testSubUnit(), harvest.BoardUndergraduate)
	require.NoError(t, err)
	require.Equal(t, 0, second.Inserted)
	require.Len(t, store.rows, 2)
}

func TestHarvestBoardSkipsWithoutTemplate(t *testing.T) {
	t.Parallel()

	c := New(Config{}, &fakeExtractor{}, newFakeNoticeStore(), nil)
	result, err := c.HarvestBoard(context.Background(), testSubUnit(), harvest.BoardGraduate)
	require.NoError(t, err)
	require.True(t, result.Skipped)
	require.Zero(t, result.Pages)
}

func TestHarvestBoardEndsOnEmptyPage(t *testing.T) {
	t.Parallel()

	store := newFakeNoticeStore()
	ext := &fakeExtractor{pages: map[string][]harvest.Record{
		"https://cs.x.edu/board?page=1": records("12", "11"),
		"https://cs.x.edu/board?page=2": {},
	}}
	c := New(Config{PageCap: 9}, ext, store, nil)

	result, err := c.HarvestBoard(context.Background(), testSubUnit(), harvest.BoardUndergraduate)
	require.NoError(t, err)
	require.Equal(t, 2, result.Inserted)
	require.Len(t, ext.calls, 2)
}

func TestHarvestBoardPersistsPartialBatchOnPageFailure(t *testing.T) {
	t.Parallel()

	store := newFakeNoticeStore()
	ext := &fakeExtractor{
		pages: map[string][]harvest.Record{
			"https://cs.x.edu/board?page=1": records("12", "11"),
		},
		errs: map[string]error{
			"https://cs.x.edu/board?page=2": fmt.Errorf("listing gone"),
		},
	}
	c := New(Config{PageCap: 9}, ext, store, nil)

	result, err := c.HarvestBoard(context.Background(), testSubUnit(), harvest.BoardUndergraduate)
	require.NoError(t, err)
	require.Equal(t, 2, result.Inserted)
	require.Len(t, store.rows, 2)
}

func TestHarvestBoardFailsWhenNothingExtracted(t *testing.T) {
	t.Parallel()

	store := newFakeNoticeStore()
	ext := &fakeExtractor{errs: map[string]error{
		"https://cs.x.edu/board?page=1": fmt.Errorf("listing gone"),
	}}
	c := New(Config{}, ext, store, nil)

	_, err := c.HarvestBoard(context.Background(), testSubUnit(), harvest.BoardUndergraduate)
	require.Error(t, err)
}

func TestHarvestAllIsolatesFailingPairs(t *testing.T) {
	t.Parallel()

	store := newFakeNoticeStore()
	ext := &fakeExtractor{
		pages: map[string][]harvest.Record{
			"https://cs.x.edu/board?page=1":  records("12", "11"),
			"https://me.x.edu/notice?page=1": records("7"),
			"https://me.x.edu/notice?page=2": {},
			"https://cs.x.edu/board?page=2":  {},
		},
		errs: map[string]error{
			"https://ee.x.edu/board?page=1": fmt.Errorf("site down"),
		},
	}
	units := []harvest.SubUnit{
		testSubUnit(),
		{ID: 32, Code: "ee-1ab", Name: "Electrical Engineering", UndergradTpl: "https://ee.x.edu/board?page={page}"},
		{ID: 33, Code: "me-7cd", Name: "Mechanical Engineering", UndergradTpl: "https://me.x.edu/notice?page={page}"},
	}
	c := New(Config{PageCap: 4, MaxConcurrent: 2}, ext, store, nil)

	total, err := c.HarvestAll(context.Background(), units)
	require.NoError(t, err)
	require.Equal(t, 3, total)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return fmt.Sprintf("msg-%d", len(p.topics)), nil
}

func TestHarvestBoardPublishesOnlyWhenRowsInserted(t *testing.T) {
	t.Parallel()

	store := newFakeNoticeStore()
	ext := &fakeExtractor{pages: map[string][]harvest.Record{
		"https://cs.x.edu/board?page=1": records("42"),
	}}
	pub := &recordingPublisher{}
	c := New(Config{PageCap: 2, Topic: "harvest-batches"}, ext, store, nil, WithPublisher(pub))

	_, err := c.HarvestBoard(context.Background(), testSubUnit(), harvest.BoardUndergraduate)
	require.NoError(t, err)
	require.Equal(t, []string{"harvest-batches"}, pub.topics)

	// Unchanged listing inserts nothing and publishes nothing.
	_, err = c.HarvestBoard(context.Background(), testSubUnit(), harvest.BoardUndergraduate)
	require.NoError(t, err)
	require.Equal(t, []string{"harvest-batches"}, pub.topics)
}
