package cluster

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/lainerr"
)

const kubeconfigPrefix = "kubeconfig-"

// Kubeconfig manages the ~/.kube/config symlink whose target names the
// active cluster, e.g. ~/.kube/config -> ~/.kube/kubeconfig-bei.
type Kubeconfig struct {
	Dir string
}

// DefaultKubeconfig returns the link manager rooted at ~/.kube.
func DefaultKubeconfig() (Kubeconfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Kubeconfig{}, fmt.Errorf("failed to locate home directory: %w", err)
	}
	return Kubeconfig{Dir: filepath.Join(home, ".kube")}, nil
}

// Link is the path of the active credential pointer.
func (k Kubeconfig) Link() string {
	return filepath.Join(k.Dir, "config")
}

// Source is the per-cluster credential file a link should point at.
func (k Kubeconfig) Source(name string) string {
	return filepath.Join(k.Dir, kubeconfigPrefix+name)
}

// Current returns the name of the active cluster.
func (k Kubeconfig) Current() (string, error) {
	link := k.Link()

	fi, err := os.Lstat(link)
	if errors.Is(err, os.ErrNotExist) {
		return "", lainerr.New(lainerr.CorruptLocalState, lainerr.ErrNoActiveCluster, "%s not found", link).
			WithRemedy("lain use [CLUSTER]")
	} else if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", link, err)
	}

	if fi.Mode()&os.ModeSymlink == 0 {
		return "", corrupt(link)
	}

	target, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("failed to read link %s: %w", link, err)
	}

	_, name, ok := strings.Cut(filepath.Base(target), "-")
	if !ok || name == "" {
		return "", corrupt(link)
	}

	return name, nil
}

// Switch points the active credential link at the kubeconfig of name.
//
// The source file is checked before anything is touched. The new link is
// created under a temporary name and renamed over the old one, so the link
// is never observed missing.
func (k Kubeconfig) Switch(name string) error {
	src := k.Source(name)
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return lainerr.New(lainerr.Precondition, lainerr.ErrMissingKubeconfig, "%s not found", src).
			WithRemedy(`go fetch it from 1pw, under the "kubeconfig" item`)
	} else if err != nil {
		return fmt.Errorf("failed to check %s: %w", src, err)
	}

	link := k.Link()
	if fi, err := os.Lstat(link); err == nil && fi.Mode()&os.ModeSymlink == 0 {
		return corrupt(link)
	}

	tmp := filepath.Join(k.Dir, fmt.Sprintf(".config-%s-%d", name, os.Getpid()))
	_ = os.Remove(tmp)
	if err := os.Symlink(src, tmp); err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", link, err)
	}

	log.Debug("switched active cluster", "cluster", name, "kubeconfig", src)
	return nil
}

func corrupt(link string) error {
	return lainerr.New(lainerr.CorruptLocalState, lainerr.ErrCorruptActiveCluster, "%s is not a symlink", link).
		WithRemedy(fmt.Sprintf("you should delete %s and then `lain use [CLUSTER]`", link))
}
