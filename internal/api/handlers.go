package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/campushub/notice-harvester/internal/harvest"
)

var errInvalidLimit = errors.New("limit must be a positive integer")

type institutionPayload struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at"`
}

type subUnitPayload struct {
	ID     int64             `json:"id"`
	Code   string            `json:"code"`
	Name   string            `json:"name"`
	URL    string            `json:"url"`
	Kind   string            `json:"kind"`
	Boards map[string]string `json:"boards"`
}

type noticePayload struct {
	PostID    string `json:"post_id"`
	Board     string `json:"board"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	PostedAt  string `json:"posted_at"`
	CrawledAt string `json:"crawled_at"`
	Source    string `json:"source"`
}

func (s *Server) listInstitutions(w http.ResponseWriter, r *http.Request) {
	insts, err := s.insts.List(r.Context())
	if err != nil {
		s.storeError(w, "list institutions", err)
		return
	}
	out := make([]institutionPayload, 0, len(insts))
	for _, inst := range insts {
		out = append(out, institutionPayload{
			Code:      inst.Code,
			Name:      inst.Name,
			URL:       inst.URL,
			Kind:      string(inst.Kind),
			CreatedAt: inst.CreatedAt.Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"institutions": out})
}

func (s *Server) listSubUnits(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	inst, found, err := s.insts.GetByCode(r.Context(), code)
	if err != nil {
		s.storeError(w, "look up institution", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "institution not found")
		return
	}
	units, err := s.subs.ListByInstitution(r.Context(), inst.ID)
	if err != nil {
		s.storeError(w, "list sub-units", err)
		return
	}
	out := make([]subUnitPayload, 0, len(units))
	for _, su := range units {
		boards := make(map[string]string)
		for _, board := range harvest.AllBoardTypes() {
			if tpl, ok := su.Template(board); ok {
				boards[string(board)] = tpl
			}
		}
		out = append(out, subUnitPayload{
			ID:     su.ID,
			Code:   su.Code,
			Name:   su.Name,
			URL:    su.URL,
			Kind:   su.Kind,
			Boards: boards,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"institution": inst.Code,
		"sub_units":   out,
	})
}

func (s *Server) listNotices(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid sub-unit id")
		return
	}
	board := harvest.BoardType(r.URL.Query().Get("board"))
	if board == "" {
		writeError(w, http.StatusBadRequest, "board query parameter is required")
		return
	}
	if !validBoard(board) {
		writeError(w, http.StatusBadRequest, "unknown board type")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.notices.List(r.Context(), id, board, limit)
	if err != nil {
		s.storeError(w, "list notices", err)
		return
	}
	out := make([]noticePayload, 0, len(records))
	for _, rec := range records {
		out = append(out, noticePayload{
			PostID:    rec.PostID,
			Board:     string(rec.BoardType),
			Title:     rec.Title,
			URL:       rec.URL,
			PostedAt:  rec.PostedAt.Format(timeFormat),
			CrawledAt: rec.CrawledAt.Format(timeFormat),
			Source:    rec.SourceDisplayName,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sub_unit_id": id,
		"notices":     out,
	})
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("store query failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func validBoard(board harvest.BoardType) bool {
	for _, b := range harvest.AllBoardTypes() {
		if b == board {
			return true
		}
	}
	return false
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultNoticeLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errInvalidLimit
	}
	if n > maxNoticeLimit {
		n = maxNoticeLimit
	}
	return n, nil
}
