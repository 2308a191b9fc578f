package helm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/exttool"
	"github.com/ein-plus/lain/internal/lainerr"
	"helm.sh/helm/v3/pkg/release"
)

// BinaryInstaller drives the helm CLI.
type BinaryInstaller struct {
	Runner exttool.Runner
}

func (b *BinaryInstaller) run(ctx context.Context, opts exttool.RunOptions, args ...string) (*exttool.Result, error) {
	return b.Runner.Run(ctx, "helm", append([]string{"-n", Namespace}, args...), opts)
}

func (b *BinaryInstaller) Status(ctx context.Context, name string) (*ReleaseStatus, error) {
	res, err := b.run(ctx, exttool.RunOptions{}, "status", name, "-o", "json")
	if err != nil {
		return nil, err
	}

	if res.ExitCode != 0 {
		// "not found" is the only failure that is safe to ignore
		if strings.Contains(string(res.Stderr), "not found") {
			log.Debug("Release not found", "name", name)
			return nil, nil
		}
		return nil, res.Err()
	}

	var rel release.Release
	if err := json.Unmarshal(res.Stdout, &rel); err != nil {
		return nil, fmt.Errorf("failed to decode helm status: %w", err)
	}

	return fromRelease(&rel), nil
}

func (b *BinaryInstaller) UpgradeInstall(ctx context.Context, req UpgradeRequest) error {
	args := []string{"upgrade", "--install", "--atomic", "--wait"}
	if req.Timeout > 0 {
		args = append(args, "--timeout", req.Timeout.String())
	}
	if req.ValuesFile != "" {
		args = append(args, "-f", req.ValuesFile)
	}
	args = append(args, req.Release, req.ChartDir)

	res, err := b.run(ctx, exttool.RunOptions{Stream: true}, args...)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		// stderr already reached the terminal
		return lainerr.Tool("helm", res.ExitCode, nil)
	}

	log.Info("Release deployed", "name", req.Release)
	return nil
}

func (b *BinaryInstaller) Lint(ctx context.Context, chartDir string) error {
	res, err := b.run(ctx, exttool.RunOptions{Stream: true}, "lint", chartDir)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return lainerr.Tool("helm", res.ExitCode, nil)
	}
	return nil
}
