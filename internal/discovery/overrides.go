package discovery

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/campushub/notice-harvester/internal/harvest"
)

// Override is one manually curated board listing. Overrides are authoritative
// over anything the in-page keyword search finds.
type Override struct {
	Institution string
	// SubUnit is empty for an institution-representative listing (a dash in
	// the source line).
	SubUnit string
	URL     string
}

// ParseOverrides reads the override table: one entry per line, comma
// separated as `InstitutionName, SubUnitNameOrDash, ListingURL`. Blank lines
// and lines starting with # are ignored.
func ParseOverrides(r io.Reader) ([]Override, error) {
	var out []Override
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ",", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("override line %d: want 3 comma-separated fields, got %d", lineNo, len(parts))
		}
		ovr := Override{
			Institution: strings.TrimSpace(parts[0]),
			SubUnit:     strings.TrimSpace(parts[1]),
			URL:         strings.TrimSpace(parts[2]),
		}
		if ovr.SubUnit == "-" {
			ovr.SubUnit = ""
		}
		if ovr.Institution == "" || ovr.URL == "" {
			return nil, fmt.Errorf("override line %d: institution and url are required", lineNo)
		}
		out = append(out, ovr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	return out, nil
}

// classifyOverrideBoard picks which template field an override URL fills,
// from hints in the URL itself.
func classifyOverrideBoard(rawURL string) harvest.BoardType {
	lower := strings.ToLower(rawURL)
	switch {
	case containsAny(lower, []string{"grad", "대학원"}):
		return harvest.BoardGraduate
	case containsAny(lower, []string{"haksa", "학사", "academic"}):
		return harvest.BoardAcademic
	default:
		return harvest.BoardUndergraduate
	}
}

// representativeName names the synthetic sub-unit that carries an
// institution's own listing when an override uses a dash.
func representativeName(inst harvest.Institution) string {
	return inst.Name + " (main notices)"
}
