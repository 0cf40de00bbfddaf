package harvest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTemplateFromURLStripsPaginationParam(t *testing.T) {
	t.Parallel()

	tpl, err := TemplateFromURL("https://law.x/notice?page=3&cat=a")
	require.NoError(t, err)
	require.Equal(t, "https://law.x/notice?cat=a&page={page}", tpl)
}

func TestTemplateFromURLNoQuery(t *testing.T) {
	t.Parallel()

	tpl, err := TemplateFromURL("https://law.x/notice")
	require.NoError(t, err)
	require.Equal(t, "https://law.x/notice?page={page}", tpl)
}

func TestTemplateFromURLAlternatePageParams(t *testing.T) {
	t.Parallel()

	tpl, err := TemplateFromURL("https://x.edu/board?pageNo=7&code=grad")
	require.NoError(t, err)
	require.Equal(t, "https://x.edu/board?code=grad&page={page}", tpl)
}

func TestMaterializePage(t *testing.T) {
	t.Parallel()

	url := MaterializePage("https://law.x/notice?cat=a&page={page}", 4)
	require.Equal(t, "https://law.x/notice?cat=a&page=4", url)
}

func TestSubUnitTemplateAccessors(t *testing.T) {
	t.Parallel()

	var su SubUnit
	_, ok := su.Template(BoardGraduate)
	require.False(t, ok)

	su.SetTemplate(BoardGraduate, "https://x.edu/grad?page={page}")
	tpl, ok := su.Template(BoardGraduate)
	require.True(t, ok)
	require.Equal(t, "https://x.edu/grad?page={page}", tpl)
}
