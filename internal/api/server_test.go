package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushub/notice-harvester/internal/harvest"
)

type fakeInstitutionReader struct {
	insts   []harvest.Institution
	listErr error
}

func (f *fakeInstitutionReader) List(context.Context) ([]harvest.Institution, error) {
	return f.insts, f.listErr
}

func (f *fakeInstitutionReader) GetByCode(_ context.Context, code string) (harvest.Institution, bool, error) {
	for _, inst := range f.insts {
		if inst.Code == code {
			return inst, true, nil
		}
	}
	return harvest.Institution{}, false, nil
}

type fakeSubUnitReader struct {
	units []harvest.SubUnit
}

func (f *fakeSubUnitReader) ListByInstitution(_ context.Context, institutionID int64) ([]harvest.SubUnit, error) {
	var out []harvest.SubUnit
	for _, su := range f.units {
		if su.InstitutionID == institutionID {
			out = append(out, su)
		}
	}
	return out, nil
}

type fakeNoticeReader struct {
	records   []harvest.NoticeRecord
	lastBoard harvest.BoardType
	lastLimit int
}

func (f *fakeNoticeReader) List(_ context.Context, subUnitID int64, board harvest.BoardType, limit int) ([]harvest.NoticeRecord, error) {
	f.lastBoard = board
	f.lastLimit = limit
	var out []harvest.NoticeRecord
	for _, rec := range f.records {
		if rec.SubUnitID == subUnitID && rec.BoardType == board {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newTestServer(insts *fakeInstitutionReader, subs *fakeSubUnitReader, notices *fakeNoticeReader) *Server {
	if insts == nil {
		insts = &fakeInstitutionReader{}
	}
	if subs == nil {
		subs = &fakeSubUnitReader{}
	}
	if notices == nil {
		notices = &fakeNoticeReader{}
	}
	return NewServer(insts, subs, notices, zap.NewNop())
}

func doRequest(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec, body := doRequest(t, newTestServer(nil, nil, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestListInstitutions(t *testing.T) {
	t.Parallel()

	insts := &fakeInstitutionReader{insts: []harvest.Institution{
		{ID: 1, Code: "cu-eng-a1b2c3", Name: "Engineering", URL: "https://eng.x.edu", Kind: harvest.KindDirectoryPage},
		{ID: 2, Code: "cu-law-d4e5f6", Name: "Law", URL: "https://law.x.edu", Kind: harvest.KindDirectoryPage},
	}}
	rec, body := doRequest(t, newTestServer(insts, nil, nil), "/api/institutions")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["institutions"], 2)
}

func TestListInstitutionsStoreFailure(t *testing.T) {
	t.Parallel()

	insts := &fakeInstitutionReader{listErr: errors.New("pool closed")}
	rec, body := doRequest(t, newTestServer(insts, nil, nil), "/api/institutions")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, body["error"], "list institutions")
}

func TestListSubUnitsIncludesResolvedBoards(t *testing.T) {
	t.Parallel()

	insts := &fakeInstitutionReader{insts: []harvest.Institution{
		{ID: 7, Code: "cu-eng-a1b2c3", Name: "Engineering"},
	}}
	subs := &fakeSubUnitReader{units: []harvest.SubUnit{
		{
			ID:            31,
			InstitutionID: 7,
			Code:          "cu-cs-0a1b2c",
			Name:          "Computer Science",
			UndergradTpl:  "https://cs.x.edu/notice?page={page}",
			GradTpl:       "https://cs.x.edu/grad?page={page}",
		},
	}}
	rec, body := doRequest(t, newTestServer(insts, subs, nil), "/api/institutions/cu-eng-a1b2c3/sub-units")
	require.Equal(t, http.StatusOK, rec.Code)

	units, ok := body["sub_units"].([]any)
	require.True(t, ok)
	require.Len(t, units, 1)
	boards := units[0].(map[string]any)["boards"].(map[string]any)
	require.Len(t, boards, 2)
	require.Equal(t, "https://cs.x.edu/notice?page={page}", boards["undergraduate"])
	require.NotContains(t, boards, "academic")
}

func TestListSubUnitsUnknownInstitution(t *testing.T) {
	t.Parallel()

	rec, body := doRequest(t, newTestServer(nil, nil, nil), "/api/institutions/nope/sub-units")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "institution not found", body["error"])
}

func TestListNotices(t *testing.T) {
	t.Parallel()

	notices := &fakeNoticeReader{records: []harvest.NoticeRecord{
		{
			SubUnitID: 31,
			BoardType: harvest.BoardUndergraduate,
			PostID:    "1042",
			Title:     "Fall registration",
			URL:       "https://cs.x.edu/notice/1042",
			PostedAt:  time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC),
			CrawledAt: time.Date(2024, 8, 21, 9, 0, 0, 0, time.UTC),
		},
	}}
	rec, body := doRequest(t, newTestServer(nil, nil, notices), "/api/sub-units/31/notices?board=undergraduate&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["notices"], 1)
	require.Equal(t, harvest.BoardUndergraduate, notices.lastBoard)
	require.Equal(t, 5, notices.lastLimit)
}

func TestListNoticesValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		path string
	}{
		{"bad id", "/api/sub-units/abc/notices?board=undergraduate"},
		{"missing board", "/api/sub-units/31/notices"},
		{"unknown board", "/api/sub-units/31/notices?board=random"},
		{"bad limit", "/api/sub-units/31/notices?board=undergraduate&limit=-2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec, _ := doRequest(t, newTestServer(nil, nil, nil), tc.path)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListNoticesClampsLimit(t *testing.T) {
	t.Parallel()

	notices := &fakeNoticeReader{}
	rec, _ := doRequest(t, newTestServer(nil, nil, notices), "/api/sub-units/31/notices?board=graduate&limit=9999")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, maxNoticeLimit, notices.lastLimit)
}
