// Package harvest defines the core types and interfaces shared by the
// discovery and harvesting subsystems. It is dependency-free so every other
// package can depend inward on it.
package harvest

import "time"

// BoardType classifies a notice feed owned by a sub-unit.
type BoardType string

// Board types persisted alongside notice records.
const (
	BoardAcademic        BoardType = "academic"
	BoardUndergraduate   BoardType = "undergraduate"
	BoardGraduate        BoardType = "graduate"
	BoardKeywordGraduate BoardType = "keyword_graduate"
)

// AllBoardTypes returns the board types in harvest order.
func AllBoardTypes() []BoardType {
	return []BoardType{BoardAcademic, BoardUndergraduate, BoardGraduate, BoardKeywordGraduate}
}

// Label returns a human-readable name for the board type, used when building
// a record's source display name.
func (b BoardType) Label() string {
	switch b {
	case BoardAcademic:
		return "Academic"
	case BoardUndergraduate:
		return "Undergraduate"
	case BoardGraduate:
		return "Graduate"
	case BoardKeywordGraduate:
		return "Graduate"
	default:
		return string(b)
	}
}

// InstitutionKind tags which discovery strategy applies to an institution.
type InstitutionKind string

// Discovery strategy tags.
const (
	KindRenderedMenu     InstitutionKind = "rendered-menu"
	KindDirectoryPage    InstitutionKind = "directory-page"
	KindGraduateUmbrella InstitutionKind = "graduate-umbrella"
)

// Target is a configured discovery entry point: one portal page whose
// institutions are found with the strategy named by Kind. MenuKeyword is only
// used by the rendered-menu strategy to spot the menu's backing API call.
type Target struct {
	Name        string
	URL         string
	Kind        InstitutionKind
	MenuKeyword string
}

// Institution is a top-level organizational unit being crawled.
type Institution struct {
	ID        int64
	Code      string
	Name      string
	URL       string
	Kind      InstitutionKind
	CreatedAt time.Time
}

// SubUnit is a unit nested under an institution that owns its own notice
// boards. The template fields are optional; a board without a resolvable
// template is never harvested.
type SubUnit struct {
	ID             int64
	InstitutionID  int64
	Code           string
	Name           string
	URL            string
	Kind           string
	AcademicTpl    string
	UndergradTpl   string
	GradTpl        string
	KeywordGradTpl string
	CreatedAt      time.Time
}

// Template returns the listing URL template for the given board type, and
// whether one is set.
func (s SubUnit) Template(board BoardType) (string, bool) {
	var tpl string
	switch board {
	case BoardAcademic:
		tpl = s.AcademicTpl
	case BoardUndergraduate:
		tpl = s.UndergradTpl
	case BoardGraduate:
		tpl = s.GradTpl
	case BoardKeywordGraduate:
		tpl = s.KeywordGradTpl
	}
	return tpl, tpl != ""
}

// SetTemplate assigns the listing URL template for the given board type.
func (s *SubUnit) SetTemplate(board BoardType, tpl string) {
	switch board {
	case BoardAcademic:
		s.AcademicTpl = tpl
	case BoardUndergraduate:
		s.UndergradTpl = tpl
	case BoardGraduate:
		s.GradTpl = tpl
	case BoardKeywordGraduate:
		s.KeywordGradTpl = tpl
	}
}

// NoticeRecord is one harvested notice. Records are append-only and immutable
// once persisted; identity is (SubUnitID, BoardType, PostID).
type NoticeRecord struct {
	ID                int64
	SubUnitID         int64
	BoardType         BoardType
	PostID            string
	Title             string
	URL               string
	PostedAt          time.Time
	CrawledAt         time.Time
	SourceDisplayName string
}

// Source identifies which extraction path produced a page's records.
type Source string

// Extraction sources, informational only.
const (
	SourceStructured Source = "structured"
	SourceMarkup     Source = "markup"
)

// Record is a normalized listing entry before it is bound to a sub-unit and
// board.
type Record struct {
	ID       string
	Title    string
	URL      string
	PostedAt time.Time
}
