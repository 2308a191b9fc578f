// Package helm is the chart installer capability used by deploys: release
// status, atomic upgrade-or-install and chart linting.
package helm

import (
	"context"
	"slices"
	"time"

	"helm.sh/helm/v3/pkg/release"
)

// Namespace is where every lain release lives.
const Namespace = "default"

// BrokenStates are release states a deploy refuses to build on. Recovering
// from them needs a human.
var BrokenStates = []release.Status{
	release.StatusFailed,
	release.StatusPendingInstall,
}

// ReleaseStatus is the installer's view of a release.
type ReleaseStatus struct {
	Name     string
	Revision int
	Status   release.Status
}

// Broken reports whether the release is stuck in one of BrokenStates.
func (s *ReleaseStatus) Broken() bool {
	return s != nil && slices.Contains(BrokenStates, s.Status)
}

// UpgradeRequest describes one atomic upgrade-or-install.
type UpgradeRequest struct {
	Release  string
	ChartDir string
	// ValuesFile is the rendered effective configuration.
	ValuesFile string
	// Values is the same configuration as a tree, for in-process installers.
	Values  map[string]interface{}
	Timeout time.Duration
}

// Installer installs charts. Implementations roll back on failure themselves;
// callers never retry.
type Installer interface {
	// Status returns nil, nil when the release does not exist.
	Status(ctx context.Context, name string) (*ReleaseStatus, error)
	UpgradeInstall(ctx context.Context, req UpgradeRequest) error
	Lint(ctx context.Context, chartDir string) error
}

func fromRelease(rel *release.Release) *ReleaseStatus {
	s := &ReleaseStatus{Name: rel.Name, Revision: rel.Version}
	if rel.Info != nil {
		s.Status = rel.Info.Status
	}
	return s
}
