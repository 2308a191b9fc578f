package helm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/registry"
	"helm.sh/helm/v3/pkg/storage/driver"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

// SDKInstaller runs Helm in-process against the cluster of getter.
type SDKInstaller struct {
	getter       genericclioptions.RESTClientGetter
	namespace    string
	actionConfig *action.Configuration
}

// NewSDKInstaller creates a new in-process installer
func NewSDKInstaller(getter genericclioptions.RESTClientGetter, namespace string) (*SDKInstaller, error) {
	registryClient, err := registry.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create registry client: %w", err)
	}

	actionConfig := new(action.Configuration)
	actionConfig.RegistryClient = registryClient

	if err := actionConfig.Init(getter, namespace, os.Getenv("HELM_DRIVER"), func(format string, args ...interface{}) {
		log.With("namespace", namespace).Debugf(format, args...)
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize action config: %w", err)
	}

	return &SDKInstaller{
		getter:       getter,
		namespace:    namespace,
		actionConfig: actionConfig,
	}, nil
}

func (s *SDKInstaller) Status(ctx context.Context, name string) (*ReleaseStatus, error) {
	rel, err := action.NewStatus(s.actionConfig).Run(name)
	if err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) || strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get status of release %s: %w", name, err)
	}
	return fromRelease(rel), nil
}

// releaseExists checks if a release has any history
func (s *SDKInstaller) releaseExists(name string) bool {
	history := action.NewHistory(s.actionConfig)
	history.Max = 1

	_, err := history.Run(name)
	return err == nil
}

func (s *SDKInstaller) configureInstallAction(req UpgradeRequest) *action.Install {
	install := action.NewInstall(s.actionConfig)

	install.ReleaseName = req.Release
	install.Namespace = s.namespace
	install.Atomic = true
	install.Wait = true
	install.Timeout = req.Timeout

	return install
}

func (s *SDKInstaller) configureUpgradeAction(req UpgradeRequest) *action.Upgrade {
	upgrade := action.NewUpgrade(s.actionConfig)

	upgrade.Install = true
	upgrade.Namespace = s.namespace
	upgrade.Atomic = true
	upgrade.Wait = true
	upgrade.Timeout = req.Timeout

	return upgrade
}

func (s *SDKInstaller) UpgradeInstall(ctx context.Context, req UpgradeRequest) error {
	ch, err := loader.Load(req.ChartDir)
	if err != nil {
		return fmt.Errorf("failed to load chart %s: %w", req.ChartDir, err)
	}

	if !s.releaseExists(req.Release) {
		if _, err := s.configureInstallAction(req).RunWithContext(ctx, ch, req.Values); err != nil {
			return fmt.Errorf("failed to install release %s: %w", req.Release, err)
		}
		log.Info("Release installed", "name", req.Release)
		return nil
	}

	if _, err := s.configureUpgradeAction(req).RunWithContext(ctx, req.Release, ch, req.Values); err != nil {
		return fmt.Errorf("failed to upgrade release %s: %w", req.Release, err)
	}
	log.Info("Release upgraded", "name", req.Release)
	return nil
}

func (s *SDKInstaller) Lint(_ context.Context, chartDir string) error {
	result := action.NewLint().Run([]string{chartDir}, nil)
	for _, msg := range result.Messages {
		log.Debug("lint", "message", msg.Error())
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("chart %s failed lint: %w", chartDir, errors.Join(result.Errors...))
	}
	return nil
}
