package cli

import (
	"fmt"

	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/values"
	"github.com/spf13/cobra"
)

const defaultLogTail = 50

func newLogsCmd(o *rootOptions) *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:     "logs [DEPLOY]",
		Aliases: []string{"log"},
		Short:   "Tail app logs",
		Long: `Tail app logs.

Examples:
  # recent logs of every pod
  lain logs

  # full logs of one deployment
  lain logs web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lctx, err := o.appContext(cmd)
			if err != nil {
				return err
			}

			selector := "app.kubernetes.io/name=" + lctx.Appname
			lines := defaultLogTail
			if len(args) > 0 {
				deploy := args[len(args)-1]
				if err := values.CheckDeployments(lctx.Values, []string{deploy}); err != nil {
					return err
				}
				selector = fmt.Sprintf("app.kubernetes.io/instance=%s-%s", lctx.Appname, deploy)
				lines = -1
			}
			if cmd.Flags().Changed("tail") {
				lines = tail
			}

			res, err := lctx.Kubectl.Logs(lctx, selector, lines)
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				return lainerr.Tool("kubectl", res.ExitCode, nil).
					WithRemedy("kubectl refuses to follow too many pods at once, try one deployment:\n    lain logs DEPLOY")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tail, "tail", defaultLogTail, "lines of recent log to display, defaults to 50 if no deploy is specified, otherwise the full log")

	return cmd
}
