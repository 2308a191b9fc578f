package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ein-plus/lain/internal/lain"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/secret"
	"github.com/spf13/cobra"
)

const addedNothing = "You just added nothing, what a great way to use this command"

// secretObject names the Kubernetes secret of kind for the current app.
func secretObject(lctx *lain.Context, kind secret.Kind) string {
	if kind == secret.KindEnv {
		return secret.EnvName(lctx.Appname)
	}
	return secret.FilesName(lctx.Appname)
}

// showSecret prints the decoded secret, as a readable document by default
// or as the encoded object with -o json|yaml.
func showSecret(lctx *lain.Context, kind secret.Kind, output string) error {
	d, err := lctx.Secrets.Fetch(lctx, secretObject(lctx, kind), kind)
	if err != nil {
		return err
	}
	if output != "" {
		return printObject(secret.Encode(d), lctx.Stdout, output)
	}
	doc, err := secret.MarshalDocument(d)
	if err != nil {
		return err
	}
	_, err = lctx.Stdout.Write(doc)
	return err
}

func editSecret(lctx *lain.Context, kind secret.Kind) error {
	name := secretObject(lctx, kind)
	if err := lctx.Secrets.Edit(lctx, name, kind, lctx.Config.Editor); err != nil {
		return err
	}
	goodjob(lctx.Stderr, fmt.Sprintf("secret/%s edited, you can use `lain %s show` to view it", name, kind))
	return nil
}

// SecretCmd handles the secret command group
type SecretCmd struct {
	root *rootOptions

	output     string
	legacyFile string
}

func newSecretCmd(o *rootOptions) *cobra.Command {
	s := &SecretCmd{root: o}

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secret files of your app",
		Long: `Secret file management.

On lain4 clusters secret files are stored in the Kubernetes Secret APPNAME-secret
and mounted at the paths defined in chart/values.yaml; all processes share
the same set of files.

On legacy clusters secrets live in lvault, and the legacy argument shapes
are passed through to legacy_lain.`,
	}

	show := &cobra.Command{
		Use:   "show [LEGACY_CLUSTER [PROC]]",
		Short: "Show secret files",
		Long: `Show secret files.

Examples:
  lain secret show

  # legacy clusters
  lain secret show ein web`,
		RunE: s.show,
	}
	show.Flags().StringVarP(&s.output, "output", "o", "", "print the encoded Secret instead, one of: json, yaml")

	add := &cobra.Command{
		Use:   "add FILE",
		Short: "Add a secret file",
		Long: `Add a secret file, stored under its base name.

Examples:
  lain secret add deploy/topsecret.txt

  # legacy clusters
  lain secret add -f FILE CLUSTER PROC PATH`,
		RunE: s.add,
	}
	add.Flags().StringVarP(&s.legacyFile, "file", "f", "", "the secret file to add, for legacy clusters")

	edit := &cobra.Command{
		Use:   "edit",
		Short: "Edit secret files in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lctx, err := o.appContext(cmd)
			if err != nil {
				return err
			}
			return editSecret(lctx, secret.KindSecret)
		},
	}

	cmd.AddCommand(show, add, edit)
	return cmd
}

func (s *SecretCmd) show(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		lctx, err := s.root.context(cmd)
		if err != nil {
			return err
		}
		return passthrough(lctx, false, append([]string{"secret", "show"}, args...)...)
	}

	lctx, err := s.root.appContext(cmd)
	if err != nil {
		return err
	}
	return showSecret(lctx, secret.KindSecret, s.output)
}

func (s *SecretCmd) add(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		goodjob(cmd.ErrOrStderr(), addedNothing)
		return nil
	}
	if len(args) > 1 {
		lctx, err := s.root.context(cmd)
		if err != nil {
			return err
		}
		return passthrough(lctx, true, append([]string{"secret", "add", "-f", s.legacyFile}, args...)...)
	}

	lctx, err := s.root.appContext(cmd)
	if err != nil {
		return err
	}

	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return lainerr.New(lainerr.UserInput, err, "cannot read %s", path)
	}

	name := secretObject(lctx, secret.KindSecret)
	key := filepath.Base(path)
	if err := lctx.Secrets.Add(lctx, name, secret.KindSecret, map[string]string{key: string(content)}); err != nil {
		return err
	}

	goodjob(lctx.Stderr, fmt.Sprintf("%s has been added to secret/%s, now you should delete this file", path, name))
	return nil
}
