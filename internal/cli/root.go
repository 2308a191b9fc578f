package cli

import (
	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/lain"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags and the base options every
// command builds its lain.Context from.
type rootOptions struct {
	configFile string
	registry   string
	silent     bool
	verbose    bool

	base lain.Options
}

// NewRootCommand creates the lain command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{})
}

func newRootCommand(o *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lain",
		Short: "Deploy lain apps to Kubernetes",
		Long: `lain renders, checks and deploys your app's helm chart, and wraps the
kubectl and helm chores that usually come with it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			switch {
			case o.silent:
				log.SetLevel(log.ErrorLevel)
			case o.verbose:
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&o.silent, "silent", "s", false, "log as little text as possible")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log every external call")
	flags.StringVar(&o.configFile, "config", "", "user config file, defaults to $LAIN_CONFIG or ~/.lain/config.yaml")
	flags.StringVar(&o.registry, "registry", "", "override the image registry of the active cluster")

	rootCmd.AddCommand(newInitCmd(o))
	rootCmd.AddCommand(newUseCmd(o))
	rootCmd.AddCommand(newDeployCmd(o))
	rootCmd.AddCommand(newUpdateImageCmd(o))
	rootCmd.AddCommand(newSecretCmd(o))
	rootCmd.AddCommand(newEnvCmd(o))
	rootCmd.AddCommand(newStatusCmd(o))
	rootCmd.AddCommand(newLogsCmd(o))
	rootCmd.AddCommand(newExecCmd(o))
	rootCmd.AddCommand(newVersionCmd())
	for _, c := range newLegacyCmds(o) {
		rootCmd.AddCommand(c)
	}

	return rootCmd
}

// context assembles the lain.Context for one invocation of cmd.
func (o *rootOptions) context(cmd *cobra.Command) (*lain.Context, error) {
	opts := o.base
	if o.configFile != "" {
		opts.ConfigFile = o.configFile
	}
	if o.registry != "" {
		opts.Override.Registry = o.registry
	}
	if opts.Stdout == nil {
		opts.Stdout = cmd.OutOrStdout()
	}
	if opts.Stderr == nil {
		opts.Stderr = cmd.ErrOrStderr()
	}
	return lain.New(cmd.Context(), opts)
}

// appContext is context for commands that only make sense inside an app
// repository with an active cluster.
func (o *rootOptions) appContext(cmd *cobra.Command) (*lain.Context, error) {
	lctx, err := o.context(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := lctx.RequireApp(); err != nil {
		return nil, err
	}
	if _, err := lctx.RequireCluster(); err != nil {
		return nil, err
	}
	return lctx, nil
}
