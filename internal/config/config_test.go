package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campushub/notice-harvester/internal/harvest"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
db:
  dsn: postgres://localhost/harvester
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 15, cfg.HTTP.TimeoutSeconds)
	require.Equal(t, 10, cfg.Harvest.PageCap)
	require.Equal(t, 8, cfg.Harvest.MaxConcurrent)
	require.Equal(t, "harvest-batches", cfg.PubSub.Topic)
	require.True(t, cfg.Logging.Development)
}

func TestLoadParsesTargets(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
db:
  dsn: postgres://localhost/harvester
targets:
  - name: main-campus
    url: https://x.edu/
    kind: rendered-menu
    menu_keyword: collegeList
  - name: grad-schools
    url: https://grad.x.edu/schools
    kind: graduate-umbrella
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	targets := cfg.HarvestTargets()
	require.Len(t, targets, 2)
	require.Equal(t, harvest.KindRenderedMenu, targets[0].Kind)
	require.Equal(t, "collegeList", targets[0].MenuKeyword)
	require.Equal(t, harvest.KindGraduateUmbrella, targets[1].Kind)
}

func TestLoadRejectsMissingDSN(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9999
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "db.dsn")
}

func TestLoadRejectsUnknownTargetKind(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
db:
  dsn: postgres://localhost/harvester
targets:
  - name: bad
    url: https://x.edu/
    kind: mystery
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown kind")
}

func TestLoadRejectsIncompleteSnapshotBackend(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
db:
  dsn: postgres://localhost/harvester
snapshot:
  backend: gcs
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "gcs_bucket")
}
