package discovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeIsDeterministic(t *testing.T) {
	t.Parallel()

	a := Code("cnu", "Computer Science", "https://cs.x.edu")
	b := Code("cnu", "Computer Science", "https://cs.x.edu")
	require.Equal(t, a, b)
	require.True(t, strings.HasPrefix(a, "cnu-computer-scien"), a)
}

func TestCodeDisambiguatesByURL(t *testing.T) {
	t.Parallel()

	a := Code("", "Computer Science", "https://cs.a.edu")
	b := Code("", "Computer Science", "https://cs.b.edu")
	require.NotEqual(t, a, b)
}

func TestCodeHandlesNonASCIINames(t *testing.T) {
	t.Parallel()

	// Korean names slug to nothing; the hash still identifies the unit.
	a := Code("", "컴퓨터공학과", "https://cse.x.edu")
	b := Code("", "전자공학과", "https://ee.x.edu")
	require.NotEqual(t, a, b)
	require.NotEmpty(t, a)
	require.LessOrEqual(t, len(a), 50)
}

func TestSlugifyTruncates(t *testing.T) {
	t.Parallel()

	s := slugify("A Very Long Department Name Indeed")
	require.LessOrEqual(t, len(s), maxSlugLen)
	require.False(t, strings.HasSuffix(s, "-"))
}
