package cli

import (
	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/cluster"
	"github.com/ein-plus/lain/internal/deploy"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/values"
	"github.com/spf13/cobra"
)

// DeployCmd handles the deploy command
type DeployCmd struct {
	root *rootOptions

	pairs []string
}

// newDeployCmd creates and returns the deploy command
func newDeployCmd(o *rootOptions) *cobra.Command {
	d := &DeployCmd{root: o}

	cmd := &cobra.Command{
		Use:   "deploy [LEGACY_CLUSTER [ARGS...]]",
		Short: "Deploy your app to the active cluster",
		Long: `Deploy ./chart to the active cluster.

Before anything is installed lain checks that the image exists in the
registry, that every secret file your deployments mount has been added, and
that the previous release is not stuck. Any failed check aborts the deploy
with the commands to fix it.

Operations are not safe to run concurrently against the same application;
Helm is the sole arbiter of concurrent mutation.

Examples:
  # deploy the image built from the current commit
  lain deploy

  # deploy a specific image
  lain deploy --set imageTag=release-1588000000-abcdef0

  # legacy clusters are handed to legacy_lain
  lain deploy ein`,
		RunE: d.run,
	}

	cmd.Flags().StringArrayVar(&d.pairs, "set", nil, "override values in values.yaml, same as helm, can be repeated")
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func (d *DeployCmd) run(cmd *cobra.Command, args []string) error {
	lctx, err := d.root.context(cmd)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		if _, err := lctx.Clusters.Resolve(args[0], cluster.Endpoints{}); err == nil {
			return lainerr.New(lainerr.UserInput, nil, "For lain4 clusters, just type `lain deploy`").
				WithRemedy("lain use " + args[0] + "\nlain deploy")
		}
		return passthrough(lctx, true, append([]string{"deploy"}, args...)...)
	}

	ep, err := lctx.RequireCluster()
	if err != nil {
		return err
	}

	pairs, err := values.ParsePairs(d.pairs)
	if err != nil {
		return err
	}

	installer, err := lctx.Installer()
	if err != nil {
		return err
	}

	orch := &deploy.Orchestrator{
		Installer: installer,
		Secrets:   lctx.Secrets,
		Resolver:  lctx.Resolver,
		Out:       lctx.Stderr,
	}
	res, err := orch.Deploy(lctx, deploy.Request{
		ChartDir: lctx.ChartDir,
		Cluster:  ep,
		Pairs:    pairs,
		Strict:   lctx.Config.StrictOverrides,
		Timeout:  lctx.Config.HelmTimeout,
	})
	log.Debug("Deploy finished", "state", orch.State())
	if err != nil {
		return err
	}

	goodjob(lctx.Stderr, res.Toast)
	return nil
}
