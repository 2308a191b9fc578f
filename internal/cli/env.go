package cli

import (
	"strings"

	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/secret"
	"github.com/spf13/cobra"
)

// parseEnv splits K=V entries on the first "=".
func parseEnv(args []string) (map[string]string, error) {
	env := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, lainerr.New(lainerr.UserInput, lainerr.ErrInvalidKVPair,
				"%q is not a valid env entry", arg).WithRemedy("lain env add FOO=BAR EGG=SPAM")
		}
		env[k] = v
	}
	return env, nil
}

func newEnvCmd(o *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage environment variables of your app",
		Long: `Env management.

On lain4 clusters env is stored in the Kubernetes Secret APPNAME-env and
referenced with envFrom by every process. These commands are handy ways to
view and edit it.`,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show env",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lctx, err := o.appContext(cmd)
			if err != nil {
				return err
			}
			return showSecret(lctx, secret.KindEnv, output)
		},
	}
	show.Flags().StringVarP(&output, "output", "o", "", "print the encoded Secret instead, one of: json, yaml")

	add := &cobra.Command{
		Use:   "add KEY=VALUE...",
		Short: "Add or overwrite env entries",
		Long: `Add or overwrite env entries.

Examples:
  lain env add FOO=BAR EGG=SPAM`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				goodjob(cmd.ErrOrStderr(), addedNothing)
				return nil
			}
			env, err := parseEnv(args)
			if err != nil {
				return err
			}

			lctx, err := o.appContext(cmd)
			if err != nil {
				return err
			}
			name := secretObject(lctx, secret.KindEnv)
			if err := lctx.Secrets.Add(lctx, name, secret.KindEnv, env); err != nil {
				return err
			}
			goodjob(lctx.Stderr, "env edited, you can use `lain env show` to view them")
			return nil
		},
	}

	edit := &cobra.Command{
		Use:   "edit",
		Short: "Edit env in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lctx, err := o.appContext(cmd)
			if err != nil {
				return err
			}
			return editSecret(lctx, secret.KindEnv)
		},
	}

	cmd.AddCommand(show, add, edit)
	return cmd
}
