package exttool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// LegacyLain drives the legacy_lain binary, which still owns building,
// tagging and pushing images.
type LegacyLain struct {
	Runner Runner
	// ValuesFile is chart/values.yaml; when it carries a build clause it can
	// stand in for lain.yaml.
	ValuesFile string
	// WorkDir is the app directory; legacy_lain wants LAIN_YAML inside it.
	WorkDir string
}

// Meta returns the default image tag for the current commit.
func (l *LegacyLain) Meta(ctx context.Context) (string, error) {
	res, err := l.Runner.Run(ctx, "legacy_lain", []string{"meta"}, RunOptions{})
	if err != nil {
		return "", err
	}
	if err := res.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

// ConfigSave records the domain of cluster in legacy_lain's own config.
func (l *LegacyLain) ConfigSave(ctx context.Context, cluster, domain string) error {
	res, err := l.Runner.Run(ctx, "legacy_lain", []string{"config", "save", cluster, "domain", domain}, RunOptions{})
	if err != nil {
		return err
	}
	return res.Err()
}

// Passthrough runs legacy_lain with args attached to the terminal. With
// useValues, a copy of ValuesFile is handed over as LAIN_YAML.
func (l *LegacyLain) Passthrough(ctx context.Context, useValues bool, args ...string) (*Result, error) {
	opts := RunOptions{Interactive: true}

	if useValues && l.ValuesFile != "" {
		lainYaml, cleanup, err := l.fakeLainYaml()
		if err != nil {
			return nil, err
		}
		defer cleanup()
		if lainYaml != "" {
			opts.Env = append(opts.Env, "LAIN_YAML="+lainYaml)
		}
	}

	return l.Runner.Run(ctx, "legacy_lain", args, opts)
}

// fakeLainYaml copies ValuesFile next to the build context, since
// legacy_lain requires lain.yaml to live there.
func (l *LegacyLain) fakeLainYaml() (string, func(), error) {
	b, err := os.ReadFile(l.ValuesFile)
	if os.IsNotExist(err) {
		return "", func() {}, nil
	} else if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", l.ValuesFile, err)
	}

	dir := l.WorkDir
	if dir == "" {
		dir = filepath.Dir(filepath.Dir(l.ValuesFile))
	}
	f, err := os.CreateTemp(dir, ".lain-yaml-*.yaml")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temporary lain.yaml: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("failed to write temporary lain.yaml: %w", err)
	}
	f.Close()

	log.Debug("Using chart values as lain.yaml", "path", f.Name())
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
