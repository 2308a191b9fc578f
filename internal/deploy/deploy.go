// Package deploy gates and runs one release of an app. Every check that can
// fail happens before the first call that changes cluster state; once the
// installer has been invoked its outcome is relayed as is.
package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/cluster"
	"github.com/ein-plus/lain/internal/config"
	"github.com/ein-plus/lain/internal/helm"
	"github.com/ein-plus/lain/internal/image"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/secret"
	"github.com/ein-plus/lain/internal/values"
	"helm.sh/helm/v3/pkg/chartutil"
)

// State is a step of a deploy.
type State int

const (
	NotStarted State = iota
	PreconditionsChecked
	Installing
	Succeeded
	Failed
	Aborted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case PreconditionsChecked:
		return "PreconditionsChecked"
	case Installing:
		return "Installing"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Secrets is the part of the secret store a deploy needs.
type Secrets interface {
	Lookup(ctx context.Context, name string) (*secret.Decoded, error)
	Ensure(ctx context.Context, name string, kind secret.Kind) error
}

// TagResolver verifies the image tag to deploy.
type TagResolver interface {
	Resolve(ctx context.Context, requested, appname, registry string, caller image.Caller) (string, error)
}

// Request is one deploy of the chart in ChartDir to Cluster.
type Request struct {
	ChartDir string
	Cluster  cluster.Endpoints
	Pairs    []values.Pair
	// Strict rejects cluster override files that change a value's shape.
	Strict  bool
	Timeout time.Duration
	// TempDir receives the rendered values file, os.TempDir() when empty.
	TempDir string
}

// Result describes a successful deploy.
type Result struct {
	Appname  string
	ImageTag string
	Values   map[string]interface{}
	Toast    string
}

// Orchestrator runs deploys. It is single use: State reports how the last
// Deploy ended.
type Orchestrator struct {
	Installer helm.Installer
	Secrets   Secrets
	Resolver  TagResolver
	// Out receives progress notes meant for the user.
	Out io.Writer

	state State
}

// State returns where the deploy stopped.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) abort(err error) (*Result, error) {
	o.state = Aborted
	return nil, err
}

// Deploy checks every precondition, then upgrades or installs the release.
func (o *Orchestrator) Deploy(ctx context.Context, req Request) (*Result, error) {
	o.state = NotStarted

	if ok, _ := chartutil.IsChartDir(req.ChartDir); !ok {
		return o.abort(lainerr.New(lainerr.Precondition, lainerr.ErrChartMissing, "no chart at %s", req.ChartDir).
			WithRemedy("run `lain init --help` to learn how"))
	}

	base, err := config.ReadTree(filepath.Join(req.ChartDir, "values.yaml"))
	if err != nil {
		return o.abort(err)
	}
	appname, err := values.Appname(base)
	if err != nil {
		return o.abort(err)
	}

	in := values.Input{
		Base:     base,
		Pairs:    req.Pairs,
		Registry: req.Cluster.Registry,
		Cluster:  req.Cluster.Name,
		Strict:   req.Strict,
	}
	overrideFile, ok, err := config.ClusterValuesFile(req.ChartDir, req.Cluster.Name)
	if err != nil {
		return o.abort(err)
	}
	if ok {
		in.Override, err = config.ReadTree(overrideFile)
		if err != nil {
			return o.abort(err)
		}
		in.OverrideFile = overrideFile
		log.Debug("Using cluster values file", "path", overrideFile)
	}

	effective, err := values.Effective(in, func(requested string) (string, error) {
		return o.Resolver.Resolve(ctx, requested, appname, req.Cluster.Registry, image.CallerDeploy)
	})
	if err != nil {
		return o.abort(err)
	}

	if err := o.checkSecretFiles(ctx, appname, req.Cluster.Name, effective); err != nil {
		return o.abort(err)
	}

	if err := o.checkRelease(ctx, appname); err != nil {
		return o.abort(err)
	}

	// envFrom references the env secret; the release cannot start without it
	if err := o.Secrets.Ensure(ctx, secret.EnvName(appname), secret.KindEnv); err != nil {
		return o.abort(err)
	}

	o.state = PreconditionsChecked
	o.headsup()

	valuesFile, err := values.WriteTemp(req.TempDir, effective)
	if err != nil {
		return o.abort(err)
	}
	defer os.Remove(valuesFile)

	o.state = Installing
	log.Info("Deploying release", "name", appname, "cluster", req.Cluster.Name, "imageTag", effective[values.ImageTagKey])

	err = o.Installer.UpgradeInstall(ctx, helm.UpgradeRequest{
		Release:    appname,
		ChartDir:   req.ChartDir,
		ValuesFile: valuesFile,
		Values:     effective,
		Timeout:    req.Timeout,
	})
	if err != nil {
		o.state = Failed
		return nil, err
	}
	o.state = Succeeded

	toast, err := Toast(appname, effective, req.Cluster)
	if err != nil {
		return nil, err
	}

	tag, _ := effective[values.ImageTagKey].(string)
	return &Result{Appname: appname, ImageTag: tag, Values: effective, Toast: toast}, nil
}

func (o *Orchestrator) checkSecretFiles(ctx context.Context, appname, clusterName string, effective map[string]interface{}) error {
	subPaths := values.SecretSubPaths(effective)
	if len(subPaths) == 0 {
		return nil
	}

	name := secret.FilesName(appname)
	existing, err := o.Secrets.Lookup(ctx, name)
	if err != nil {
		return err
	}

	missing := subPaths
	if existing != nil {
		missing = nil
		keys := existing.Keys()
		for _, p := range subPaths {
			if !slices.Contains(keys, p) {
				missing = append(missing, p)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var remedy strings.Builder
	fmt.Fprintf(&remedy, "you should create them:\n    lain use %s\n", clusterName)
	for _, f := range missing {
		fmt.Fprintf(&remedy, "    lain secret add %s\n", f)
	}
	fmt.Fprintf(&remedy, "And if you ever need to add more files, env or edit them, do this:\n    lain secret edit")

	return lainerr.New(lainerr.Precondition, lainerr.ErrSecretMissing, "secret %v not found in %s", missing, name).
		WithRemedy(remedy.String())
}

func (o *Orchestrator) checkRelease(ctx context.Context, appname string) error {
	status, err := o.Installer.Status(ctx, appname)
	if err != nil {
		return err
	}
	if !status.Broken() {
		return nil
	}

	remedy := fmt.Sprintf(`Now do this:
    helm status %[1]s
    kubectl get po -l app.kubernetes.io/name=%[1]s
    kubectl describe pod [POD_NAME]
    kubectl logs -f pod [POD_NAME]
Once you learn and fix the problem, delete this failed install VERY CAREFULLY:
    helm delete %[1]s`, appname)

	return lainerr.New(lainerr.Precondition, lainerr.ErrBrokenRelease, "chart deployed but in a weird state: %s", status.Status).
		WithRemedy(remedy)
}

func (o *Orchestrator) headsup() {
	if o.Out == nil {
		return
	}
	fmt.Fprint(o.Out, `While being deployed, you can check the status of your app:
    lain status
    lain logs
`)
}
