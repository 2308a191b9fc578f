package cli

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/helm"
	"github.com/spf13/cobra"
)

func newUseCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use CLUSTER",
		Short: "Point kubectl, helm and lain to a cluster",
		Long: `Point to the specified cluster.

This links ~/.kube/kubeconfig-CLUSTER to ~/.kube/config, so that you don't
have to type --kubeconfig when using kubectl or helm.`,
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			lctx, err := o.context(cmd)
			if err != nil || len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return lctx.Clusters.Names(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			lctx, err := o.context(cmd)
			if err != nil {
				return err
			}

			name := args[0]
			ep, err := lctx.UseCluster(name)
			if err != nil {
				return err
			}

			res, err := lctx.Kubectl.SetContextNamespace(lctx, helm.Namespace)
			if err != nil {
				return err
			}
			if err := res.Err(); err != nil {
				return err
			}

			if ep.Domain != "" {
				if err := lctx.Legacy.ConfigSave(lctx, name, ep.Domain); err != nil {
					return err
				}
			} else {
				log.Debug("Cluster has no legacy domain, skipping legacy_lain config", "cluster", name)
			}

			goodjob(lctx.Stderr, fmt.Sprintf("You did good, next time you use lain4 / helm / kubectl, it'll point to cluster %s", name))
			return nil
		},
	}
}
