package chart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/engine"
)

func exampleApp(t *testing.T) *manifest.AppManifest {
	t.Helper()
	m, err := manifest.Parse(ExampleManifest(), "")
	require.NoError(t, err)
	return m
}

func TestScaffold(t *testing.T) {
	dir := filepath.Join(t.TempDir(), DirName)

	require.NoError(t, Scaffold(dir, exampleApp(t), false))

	ok, err := chartutil.IsChartDir(dir)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, f := range []string{"values.yaml", "templates/_helpers.tpl", "templates/deployment.yaml", "templates/cronjob.yaml"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}

	ch, err := loader.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DirName, ch.Metadata.Name)
	assert.Equal(t, "dummy", ch.Values["appname"])
	assert.NoError(t, ch.Validate())
}

func TestScaffold_ExistingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), DirName)
	require.NoError(t, os.Mkdir(dir, 0o755))
	marker := filepath.Join(dir, "keep")
	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	err := Scaffold(dir, exampleApp(t), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, lainerr.ErrChartExists)
	assert.Equal(t, 1, lainerr.ExitCode(err))
	assert.FileExists(t, marker)

	require.NoError(t, Scaffold(dir, exampleApp(t), true))
	assert.NoFileExists(t, marker)
	assert.FileExists(t, filepath.Join(dir, "Chart.yaml"))
}

func TestScaffold_TemplatesRender(t *testing.T) {
	dir := filepath.Join(t.TempDir(), DirName)
	require.NoError(t, Scaffold(dir, exampleApp(t), false))

	ch, err := loader.Load(dir)
	require.NoError(t, err)

	overrides := map[string]interface{}{
		"registry": "registry.dev.ein.plus",
		"cluster":  "bei",
		"imageTag": "release-1588000000-abcdef0",
	}
	vals, err := chartutil.ToRenderValues(ch, overrides, chartutil.ReleaseOptions{
		Name:      "dummy",
		Namespace: "default",
		IsInstall: true,
	}, chartutil.DefaultCapabilities)
	require.NoError(t, err)

	out, err := engine.Render(ch, vals)
	require.NoError(t, err)

	deployment := out["chart/templates/deployment.yaml"]
	assert.Contains(t, deployment, "name: dummy-web")
	assert.Contains(t, deployment, "image: registry.dev.ein.plus/dummy:release-1588000000-abcdef0")
	assert.Contains(t, deployment, "memory: 256Mi")
	assert.Contains(t, deployment, "subPath: topsecret.txt")
	assert.Contains(t, deployment, "name: dummy-env")

	assert.Contains(t, out["chart/templates/ingress.yaml"], "host: dummy.bei.ein.plus")
	assert.Contains(t, out["chart/templates/cronjob.yaml"], `schedule: "30 0 * * *"`)
	assert.Contains(t, out["chart/templates/service.yaml"], "targetPort: 5000")
}
