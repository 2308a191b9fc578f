package cli

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/lain"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/values"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
)

var defaultShell = []string{"bash"}

func newExecCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "x [DEPLOY] [COMMAND...]",
		Short: "Exec into a pod of your app",
		Long: `Exec into a pod of your app, insanely easy to use.

Without DEPLOY the deployment with the most memory is picked. A single
quoted COMMAND is split like a shell would.

Examples:
  lain x
  lain x web
  lain x worker bash
  lain x web bash -c "ls | grep foo"
  lain x 'ls -l /lain/app'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lctx, err := o.appContext(cmd)
			if err != nil {
				return err
			}

			deploy, command, err := splitExecArgs(lctx, args)
			if err != nil {
				return err
			}

			pod, err := pickPod(lctx, fmt.Sprintf("app.kubernetes.io/instance=%s-%s", lctx.Appname, deploy))
			if err != nil {
				return err
			}
			if pod == "" {
				if len(args) > 0 {
					return lainerr.New(lainerr.Precondition, nil, "no pod found for deploy %s", deploy)
				}
				if pod, err = pickPod(lctx, "app.kubernetes.io/name="+lctx.Appname); err != nil {
					return err
				}
				if pod == "" {
					return lainerr.New(lainerr.Precondition, nil, "no pod found for app %s", lctx.Appname)
				}
			}

			res, err := lctx.Kubectl.Exec(lctx, pod, command)
			if err != nil {
				return err
			}
			return res.Err()
		},
	}

	cmd.Flags().SetInterspersed(false)
	return cmd
}

// splitExecArgs tells the deployment from the command.
func splitExecArgs(lctx *lain.Context, args []string) (string, []string, error) {
	command := args
	var deploy string
	if len(args) > 0 && slices.Contains(values.DeploymentNames(lctx.Values), args[0]) {
		deploy, command = args[0], args[1:]
	} else {
		best, err := values.BestDeployment(lctx.Values)
		if err != nil {
			return "", nil, err
		}
		deploy = best
		if len(args) > 0 {
			warn(lctx.Stderr, fmt.Sprintf("%s is not a deploy name, thus interpreting the command as %q", args[0], args))
		}
	}

	if len(command) == 1 {
		words, err := shellwords.Parse(command[0])
		if err != nil {
			return "", nil, lainerr.New(lainerr.UserInput, err, "cannot parse command %q", command[0])
		}
		command = words
	}
	if len(command) == 0 {
		command = defaultShell
	}

	log.Debug("Exec target", "deploy", deploy, "command", command)
	return deploy, command, nil
}

// pickPod returns the last pod matching selector, or "" when there is none.
func pickPod(lctx *lain.Context, selector string) (string, error) {
	pods, err := lctx.Kubectl.Pods(lctx, selector)
	if err != nil {
		return "", err
	}
	if len(pods) == 0 {
		return "", nil
	}
	return pods[len(pods)-1].Name, nil
}
