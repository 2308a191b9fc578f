package values

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/lainerr"
	"gopkg.in/yaml.v3"
	"helm.sh/helm/v3/pkg/strvals"
)

// ImageTagKey is never taken verbatim from the command line; it is routed
// through a TagResolver.
const ImageTagKey = "imageTag"

// Pair is one --set KEY=VALUE override. Values are typed like helm types
// them: true, false, null and integers lose their quotes, and dotted keys
// address nested mappings.
type Pair struct {
	Key   string
	Value string
}

// ParsePair splits s on its first "=".
func ParsePair(s string) (Pair, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return Pair{}, lainerr.New(lainerr.UserInput, lainerr.ErrInvalidKVPair, "expected something like FOO=BAR, got %q", s)
	}
	return Pair{Key: k, Value: v}, nil
}

// ParsePairs parses every entry of raw, failing on the first malformed one.
func ParsePairs(raw []string) ([]Pair, error) {
	pairs := make([]Pair, 0, len(raw))
	for _, s := range raw {
		p, err := ParsePair(s)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// TagResolver turns the requested image tag, empty when none was given, into
// a tag verified to exist.
type TagResolver func(requested string) (string, error)

// Input gathers the three layers of an effective configuration.
type Input struct {
	Base map[string]interface{}
	// Override is the parsed per-cluster values file, nil when there is none.
	Override     map[string]interface{}
	OverrideFile string
	Pairs        []Pair
	Registry     string
	Cluster      string
	// Strict rejects override files that change the shape of a base value.
	Strict bool
}

// Effective merges base values, the cluster override file and command line
// pairs, in that order. registry and cluster are always injected; imageTag
// comes from resolve.
func Effective(in Input, resolve TagResolver) (map[string]interface{}, error) {
	layers := []Layer{{Name: "values.yaml", Tree: in.Base}}
	if in.Override != nil {
		layers = append(layers, Layer{Name: in.OverrideFile, Tree: in.Override})
	}
	tree, drifts := MergeLayers(layers...)

	if len(drifts) > 0 {
		if in.Strict {
			return nil, lainerr.New(lainerr.UserInput, lainerr.ErrShapeMismatch, "%s", FormatDrifts(drifts)).
				WithRemedy(fmt.Sprintf("fix %s so it keeps the shape of chart/values.yaml", in.OverrideFile))
		}
		for _, d := range drifts {
			log.Warn("Override replaces value of a different shape", "file", d.Layer, "key", d.Path, "was", d.Existing, "now", d.Incoming)
		}
	}

	cli := map[string]interface{}{
		"registry": in.Registry,
		"cluster":  in.Cluster,
	}
	var requested string
	for _, p := range in.Pairs {
		if p.Key == ImageTagKey {
			requested = p.Value
			continue
		}
		// Typed and nested the way `helm --set` does it.
		if err := strvals.ParseInto(p.Key+"="+p.Value, cli); err != nil {
			return nil, lainerr.New(lainerr.UserInput, fmt.Errorf("%w: %v", lainerr.ErrInvalidKVPair, err), "cannot parse --set %s=%s", p.Key, p.Value)
		}
	}

	tag, err := resolve(requested)
	if err != nil {
		return nil, err
	}
	cli[ImageTagKey] = tag

	tree, drifts = Merge(tree, cli)
	for _, d := range drifts {
		log.Warn("--set replaces value of a different shape", "key", d.Path, "was", d.Existing, "now", d.Incoming)
	}

	return tree, nil
}

// Marshal renders a tree as YAML with sorted keys.
func Marshal(tree map[string]interface{}) ([]byte, error) {
	b, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal values: %w", err)
	}
	return b, nil
}

// WriteTemp writes tree to a new temporary YAML file and returns its path.
func WriteTemp(dir string, tree map[string]interface{}) (string, error) {
	b, err := Marshal(tree)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, "lain-values-*.yaml")
	if err != nil {
		return "", fmt.Errorf("failed to create values file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return "", fmt.Errorf("failed to write values file: %w", err)
	}
	return f.Name(), nil
}
