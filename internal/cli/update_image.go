package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/image"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/values"
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/resource"
)

// UpdateImageCmd replaces the image of some deployments and nothing else.
type UpdateImageCmd struct {
	root *rootOptions

	deduce bool
	tag    string
}

func newUpdateImageCmd(o *rootOptions) *cobra.Command {
	u := &UpdateImageCmd{root: o}

	cmd := &cobra.Command{
		Use:   "update-image DEPLOYMENT...",
		Short: "Update, and only update, the image of some deployments",
		Long: `Update, and only update, the image of some deployments.

Deployments may be given as separate arguments or comma-separated.

Examples:
  # use the image built from the current commit
  lain update-image web worker

  # use the newest image in the registry
  lain update-image web,worker --deduce`,
		RunE: u.run,
	}

	cmd.Flags().BoolVar(&u.deduce, "deduce", false, "use the latest imageTag from the registry rather than `legacy_lain meta`")
	cmd.Flags().StringVar(&u.tag, "image-tag", "", "use this imageTag rather than `legacy_lain meta`")

	return cmd
}

// splitNames flattens arguments, supporting comma separation.
func splitNames(args []string) []string {
	var names []string
	for _, arg := range args {
		names = append(names, resource.SplitResourceArgument(arg)...)
	}
	return names
}

func (u *UpdateImageCmd) run(cmd *cobra.Command, args []string) error {
	lctx, err := u.root.appContext(cmd)
	if err != nil {
		return err
	}

	choices := values.DeploymentNames(lctx.Values)
	deployments := splitNames(args)
	if len(deployments) == 0 {
		return lainerr.New(lainerr.UserInput, lainerr.ErrUnknownDeployment,
			"specify at least one deployment, choose from: %s", strings.Join(choices, ", "))
	}
	if err := values.CheckDeployments(lctx.Values, deployments); err != nil {
		return err
	}

	ep := lctx.Cluster
	var tag string
	if u.deduce {
		tag, err = lctx.Resolver.Deduce(lctx, lctx.Appname, ep.Registry)
	} else {
		tag, err = lctx.Resolver.Resolve(lctx, u.tag, lctx.Appname, ep.Registry, image.CallerUpdateImage)
	}
	if err != nil {
		return err
	}

	ref := image.Reference(ep.Registry, lctx.Appname, tag)
	log.Info("Updating image", "image", ref, "deployments", deployments)
	for _, d := range deployments {
		res, err := lctx.Kubectl.SetImage(lctx, fmt.Sprintf("%s-%s", lctx.Appname, d), d, ref)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return lainerr.Tool("kubectl", res.ExitCode, nil).
				WithRemedy("abort due to kubectl failure, if you don't understand the above error output, seek help from SA")
		}
	}

	goodjob(lctx.Stderr, fmt.Sprintf("image of %s updated to %s", strings.Join(deployments, ", "), ref))
	return nil
}
