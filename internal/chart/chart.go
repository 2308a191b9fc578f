// Package chart scaffolds the Helm chart a lain app deploys with.
package chart

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/manifest"
	"github.com/ein-plus/lain/internal/values"
	"helm.sh/helm/v3/pkg/chart"
	"sigs.k8s.io/yaml"
)

// DirName is where the chart lives in an app repository.
const DirName = "chart"

//go:embed all:templates
var templates embed.FS

//go:embed example/lain.yaml
var exampleManifest []byte

// ExampleManifest returns a lain.yaml to start from when the app has none.
func ExampleManifest() []byte {
	return append([]byte(nil), exampleManifest...)
}

// Metadata returns the Chart.yaml contents for a chart rendered into dir.
// Helm wants the chart name to match its directory.
func Metadata(dir, appname string) *chart.Metadata {
	return &chart.Metadata{
		APIVersion:  chart.APIVersionV2,
		Name:        filepath.Base(dir),
		Description: fmt.Sprintf("lain app %s", appname),
		Type:        "application",
		Version:     "0.1.0",
		AppVersion:  "0.1.0",
	}
}

// Scaffold renders a chart for m into dir. An existing dir is an error
// unless force is set, in which case it is replaced.
func Scaffold(dir string, m *manifest.AppManifest, force bool) error {
	if _, err := os.Stat(dir); err == nil {
		if !force {
			return lainerr.New(lainerr.UserInput, lainerr.ErrChartExists,
				"cannot render helm chart because directory %s already exists", dir).
				WithRemedy("if you really wanna do this again, use the --force option")
		}
		log.Warn("Replacing existing chart", "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", dir, err)
	}

	if err := os.Mkdir(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	chartYaml, err := yaml.Marshal(Metadata(dir, m.Appname))
	if err != nil {
		return fmt.Errorf("failed to marshal Chart.yaml: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Chart.yaml"), chartYaml, 0o644); err != nil {
		return fmt.Errorf("failed to write Chart.yaml: %w", err)
	}

	valuesYaml, err := values.Marshal(m.ToValues())
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "values.yaml"), valuesYaml, 0o644); err != nil {
		return fmt.Errorf("failed to write values.yaml: %w", err)
	}

	err = fs.WalkDir(templates, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		dest := filepath.Join(dir, filepath.FromSlash(p))
		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		b, err := templates.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(dest, b, 0o644)
	})
	if err != nil {
		return fmt.Errorf("failed to render chart templates: %w", err)
	}

	log.Info("Chart rendered", "dir", dir, "appname", m.Appname)
	return nil
}
