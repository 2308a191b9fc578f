// Package lain holds the per-invocation state every command works from.
// Nothing here is global: one Context is built per command and passed down.
package lain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/chart"
	"github.com/ein-plus/lain/internal/cluster"
	"github.com/ein-plus/lain/internal/config"
	"github.com/ein-plus/lain/internal/exttool"
	"github.com/ein-plus/lain/internal/helm"
	"github.com/ein-plus/lain/internal/image"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/secret"
	"github.com/ein-plus/lain/internal/values"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

// Options control how a Context is assembled. Zero values pick the
// defaults of a real invocation.
type Options struct {
	ConfigFile string
	Getenv     func(string) string
	WorkDir    string
	Kubeconfig *cluster.Kubeconfig
	// Override holds endpoint fields given on the command line.
	Override cluster.Endpoints
	Runner   exttool.Runner
	Lister   image.TagLister
	Stdout   io.Writer
	Stderr   io.Writer
}

// Context wraps the standard context with lain-specific values
type Context struct {
	context.Context

	Config     *config.Config
	Clusters   *cluster.Registry
	Kubeconfig cluster.Kubeconfig

	// Cluster is the active cluster; clusterErr explains why there is none.
	Cluster    cluster.Endpoints
	clusterErr error

	WorkDir  string
	ChartDir string
	// Values is chart/values.yaml merged with the active cluster's
	// values file, nil outside a lain app.
	Values  map[string]interface{}
	Appname string
	appErr  error

	Runner   exttool.Runner
	Kubectl  *exttool.Kubectl
	Legacy   *exttool.LegacyLain
	Secrets  *secret.Store
	Resolver *image.Resolver

	Stdout io.Writer
	Stderr io.Writer

	override cluster.Endpoints
}

// New creates a new lain context with the given options
func New(parent context.Context, opts Options) (*Context, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = config.DefaultPath(getenv)
	}
	cfg, err := config.Load(configFile, getenv)
	if err != nil {
		return nil, err
	}

	clusters, err := cluster.DefaultRegistry(cfg)
	if err != nil {
		return nil, err
	}

	var kube cluster.Kubeconfig
	if opts.Kubeconfig != nil {
		kube = *opts.Kubeconfig
	} else if kube, err = cluster.DefaultKubeconfig(); err != nil {
		return nil, err
	}

	workDir := opts.WorkDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	runner := opts.Runner
	if runner == nil {
		r := exttool.NewExecRunner(cfg.ExbinPrefix)
		r.Stdout, r.Stderr = stdout, stderr
		runner = r
	}

	lctx := &Context{
		Context:    parent,
		Config:     cfg,
		Clusters:   clusters,
		Kubeconfig: kube,
		WorkDir:    workDir,
		ChartDir:   filepath.Join(workDir, chart.DirName),
		Runner:     runner,
		Stdout:     stdout,
		Stderr:     stderr,
		override:   opts.Override,
	}
	lctx.Kubectl = &exttool.Kubectl{Runner: runner}
	lctx.Legacy = &exttool.LegacyLain{Runner: runner, ValuesFile: lctx.ValuesFile(), WorkDir: workDir}
	lctx.Secrets = &secret.Store{Kubectl: lctx.Kubectl}

	lister := opts.Lister
	if lister == nil {
		lister = image.NewRegistryLister()
	}
	lctx.Resolver = &image.Resolver{Lister: lister, Meta: lctx.Legacy.Meta}

	lctx.loadCluster()
	if err := lctx.loadValues(); err != nil {
		return nil, err
	}

	return lctx, nil
}

func (c *Context) loadCluster() {
	name, err := c.Kubeconfig.Current()
	if err != nil {
		c.clusterErr = err
		return
	}
	c.Cluster, c.clusterErr = c.Clusters.Resolve(name, c.override)
	log.Debug("Active cluster", "name", name, "error", c.clusterErr)
}

func (c *Context) loadValues() error {
	c.appErr = lainerr.New(lainerr.UserInput, lainerr.ErrNotLainApp, "not in a lain4 app repo, nothing to do").
		WithRemedy("run `lain init --help` to learn how")

	tree, err := config.ReadTree(c.ValuesFile())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	if tree, err = c.withClusterValues(tree); err != nil {
		return err
	}

	appname, err := values.Appname(tree)
	if err != nil {
		c.appErr = err
		return nil
	}

	c.Values, c.Appname, c.appErr = tree, appname, nil
	return nil
}

// withClusterValues merges chart/values-<cluster>.* over base when there is
// an active cluster, so every command sees the tree deploy would render.
func (c *Context) withClusterValues(base map[string]interface{}) (map[string]interface{}, error) {
	if c.clusterErr != nil {
		return base, nil
	}
	overrideFile, ok, err := config.ClusterValuesFile(c.ChartDir, c.Cluster.Name)
	if err != nil || !ok {
		return base, err
	}
	override, err := config.ReadTree(overrideFile)
	if err != nil {
		return nil, err
	}

	tree, drifts := values.MergeLayers(
		values.Layer{Name: "values.yaml", Tree: base},
		values.Layer{Name: overrideFile, Tree: override},
	)
	for _, d := range drifts {
		log.Debug("Override replaces value of a different shape", "file", d.Layer, "key", d.Path)
	}
	log.Debug("Using cluster values file", "path", overrideFile)
	return tree, nil
}

// ValuesFile is the path of chart/values.yaml.
func (c *Context) ValuesFile() string {
	return filepath.Join(c.ChartDir, "values.yaml")
}

// RequireCluster returns the active cluster, or why there is none.
func (c *Context) RequireCluster() (cluster.Endpoints, error) {
	return c.Cluster, c.clusterErr
}

// RequireApp returns the app name, failing outside a lain app repo.
func (c *Context) RequireApp() (string, error) {
	return c.Appname, c.appErr
}

// UseCluster makes name the active cluster.
func (c *Context) UseCluster(name string) (cluster.Endpoints, error) {
	ep, err := c.Clusters.Resolve(name, c.override)
	if err != nil {
		return cluster.Endpoints{}, err
	}
	if err := c.Kubeconfig.Switch(name); err != nil {
		return cluster.Endpoints{}, err
	}
	c.Cluster, c.clusterErr = ep, nil
	return ep, nil
}

// Installer returns the chart installer selected in the user config.
func (c *Context) Installer() (helm.Installer, error) {
	switch c.Config.Installer {
	case config.InstallerSDK:
		flags := genericclioptions.NewConfigFlags(true)
		link := c.Kubeconfig.Link()
		namespace := helm.Namespace
		flags.KubeConfig = &link
		flags.Namespace = &namespace
		return helm.NewSDKInstaller(flags, namespace)
	default:
		return &helm.BinaryInstaller{Runner: c.Runner}, nil
	}
}
