package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/chart"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/manifest"
	"github.com/spf13/cobra"
)

// InitCmd renders the helm chart of an app.
type InitCmd struct {
	root *rootOptions

	appname  string
	lainYaml string
	force    bool
}

func newInitCmd(o *rootOptions) *cobra.Command {
	i := &InitCmd{root: o}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Render a helm chart for this app",
		Long: fmt.Sprintf(`Render a helm chart into ./%[1]s from lain.yaml.

Without --lain-yaml, ./lain.yaml is used when it exists, otherwise an example
chart is generated for you to start from.

Examples:
  # render from ./lain.yaml
  lain init

  # start over
  lain init --force`, chart.DirName),
		Args: cobra.NoArgs,
		RunE: i.run,
	}

	cmd.Flags().StringVar(&i.appname, "appname", "", "name of the app, defaults to the lain.yaml appname, then the name of the current directory")
	cmd.Flags().StringVarP(&i.lainYaml, "lain-yaml", "l", "lain.yaml", "generate the chart from this lain.yaml")
	cmd.Flags().BoolVarP(&i.force, "force", "f", false, fmt.Sprintf("remove ./%s and then regenerate", chart.DirName))

	return cmd
}

func (i *InitCmd) run(cmd *cobra.Command, args []string) error {
	lctx, err := i.root.context(cmd)
	if err != nil {
		return err
	}

	fallback := i.appname
	if fallback == "" {
		fallback = filepath.Base(lctx.WorkDir)
	}

	m, err := i.manifest(cmd, lctx.WorkDir, fallback)
	if err != nil {
		return err
	}

	if err := chart.Scaffold(lctx.ChartDir, m, i.force); err != nil {
		return err
	}

	installer, err := lctx.Installer()
	if err != nil {
		return err
	}
	if err := installer.Lint(lctx, lctx.ChartDir); err != nil {
		return err
	}

	goodjob(lctx.Stderr, fmt.Sprintf(`helm chart created at ./%[1]s for app %[2]s
review ./%[1]s/values.yaml, then deploy with:
    lain use CLUSTER
    lain deploy`, chart.DirName, m.Appname))
	return nil
}

func (i *InitCmd) manifest(cmd *cobra.Command, workDir, fallback string) (*manifest.AppManifest, error) {
	path := i.lainYaml
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return manifest.Load(path, fallback)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to check %s: %w", path, err)
	case cmd.Flags().Changed("lain-yaml"):
		return nil, lainerr.New(lainerr.UserInput, err, "cannot read %s", i.lainYaml)
	}

	log.Info("No lain.yaml found, generating an example chart", "appname", fallback)
	m, err := manifest.Parse(chart.ExampleManifest(), fallback)
	if err != nil {
		return nil, err
	}
	m.Appname = fallback
	return m, nil
}
