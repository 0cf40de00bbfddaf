package extract

import (
	"errors"
	"fmt"
)

// ErrShape marks a structured response whose decoded value is not a sequence
// of record-shaped entries. It triggers the markup fallback and is never
// treated as a transport failure.
var ErrShape = errors.New("structured response has unexpected shape")

// Nested keys under which APIs wrap their listing array.
var listKeys = []string{"posts", "list", "resultList", "items", "data"}

// Field key aliases seen across board APIs.
var (
	idKeys    = []string{"id", "postId", "post_id", "no", "seq", "articleNo", "nttId"}
	titleKeys = []string{"title", "subject", "postTitle"}
	linkKeys  = []string{"url", "link", "href"}
	dateKeys  = []string{"date", "regDate", "reg_date", "postedAt", "posted_at", "createdAt", "created_at", "writeDate"}
)

// rawRecord is a listing entry before normalization.
type rawRecord struct {
	id    string
	title string
	link  string
	date  string
}

// recordsFromStructured validates that v is (or wraps) a sequence of
// record-shaped entries and converts them to raw records. An empty sequence
// is a valid zero-record listing, not a shape failure: boards return one when
// the page walk runs past the last page.
func recordsFromStructured(v any) ([]rawRecord, error) {
	entries, err := listEntries(v)
	if err != nil {
		return nil, err
	}
	records := make([]rawRecord, 0, len(entries))
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d is not an object", ErrShape, i)
		}
		rec := rawRecord{
			id:    stringField(m, idKeys),
			title: stringField(m, titleKeys),
			link:  stringField(m, linkKeys),
			date:  stringField(m, dateKeys),
		}
		if rec.title == "" || rec.link == "" {
			return nil, fmt.Errorf("%w: entry %d lacks title/link fields", ErrShape, i)
		}
		records = append(records, rec)
	}
	return records, nil
}

func listEntries(v any) ([]any, error) {
	switch val := v.(type) {
	case []any:
		return val, nil
	case map[string]any:
		for _, key := range listKeys {
			nested, ok := val[key]
			if !ok {
				continue
			}
			list, ok := nested.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not a list", ErrShape, key)
			}
			return list, nil
		}
		return nil, fmt.Errorf("%w: no known list key", ErrShape)
	default:
		return nil, fmt.Errorf("%w: not a list or object", ErrShape)
	}
}

func stringField(m map[string]any, keys []string) string {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			return val
		case float64:
			// JSON numbers decode as float64; ids are integral in practice.
			return trimFloat(val)
		}
	}
	return ""
}

func trimFloat(f float64) string {
	return fmt.Sprintf("%.0f", f)
}
