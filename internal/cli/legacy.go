package cli

import (
	"fmt"

	"github.com/ein-plus/lain/internal/lain"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/values"
	"github.com/spf13/cobra"
)

// passthrough runs legacy_lain attached to the terminal and adopts its exit code.
// With useValues, chart/values.yaml stands in for lain.yaml when it exists.
func passthrough(lctx *lain.Context, useValues bool, args ...string) error {
	res, err := lctx.Legacy.Passthrough(lctx, useValues, args...)
	if err != nil {
		return err
	}
	return res.Err()
}

type legacyCmd struct {
	name  string
	short string
	// build marks commands that read the build clause of lain.yaml; they
	// only get chart/values.yaml as lain.yaml when it has one.
	build bool
	// run replaces the plain passthrough when set.
	run func(lctx *lain.Context, args []string) error
}

func newLegacyCmds(o *rootOptions) []*cobra.Command {
	defs := []legacyCmd{
		{name: "prepare", short: "Build the prepare image, run by legacy_lain", build: true},
		{name: "build", short: "Build the release image, run by legacy_lain", build: true},
		{name: "tag", short: "Tag the release image for a cluster, run by legacy_lain"},
		{name: "push", short: "Push the release image, run by legacy_lain", run: push},
		{name: "test", short: "Run the test clause, run by legacy_lain", build: true},
		{name: "run", short: "Run the release image locally, run by legacy_lain", build: true},
		{name: "stop", short: "Stop the local container, run by legacy_lain"},
	}

	cmds := make([]*cobra.Command, 0, len(defs))
	for _, def := range defs {
		def := def
		cmds = append(cmds, &cobra.Command{
			Use:                def.name + " [ARGS...]",
			Short:              def.short,
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				lctx, err := o.context(cmd)
				if err != nil {
					return err
				}
				if def.run != nil {
					return def.run(lctx, args)
				}
				useValues := !def.build || values.HasBuild(lctx.Values)
				return passthrough(lctx, useValues, append([]string{def.name}, args...)...)
			},
		})
	}
	return cmds
}

// push without arguments tags and pushes for the active cluster.
func push(lctx *lain.Context, args []string) error {
	if len(args) > 0 {
		return passthrough(lctx, true, append([]string{"push"}, args...)...)
	}

	ep, err := lctx.RequireCluster()
	if err != nil {
		return err
	}
	if err := passthrough(lctx, true, "tag", ep.Name); err != nil {
		return lainerr.New(lainerr.ExternalTool, err, "legacy_lain tag failed").
			WithRemedy(fmt.Sprintf("maybe you need to `lain use %s` one more time", ep.Name))
	}
	return passthrough(lctx, true, "push", ep.Name)
}
