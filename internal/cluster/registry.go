// Package cluster resolves cluster names to their connection endpoints and
// tracks which cluster the local kubeconfig currently points at.
package cluster

import (
	"fmt"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/ein-plus/lain/internal/config"
	"github.com/ein-plus/lain/internal/lainerr"
)

// Endpoints is the immutable connection record for a cluster.
type Endpoints struct {
	Name     string
	Registry string
	Domain   string
	Console  string
	Entry    string
	LVault   string
	// Phase is the legacy CI phase alias passed to legacy_lain.
	Phase string
	// IngressDomain is appended to ingress hosts to build app URLs.
	IngressDomain string
	GrafanaURL    string
	Kibana        string
}

// IngressURL builds the in-cluster URL of an ingress host.
func (e Endpoints) IngressURL(host string) string {
	return fmt.Sprintf("http://%s.%s", host, e.IngressDomain)
}

var builtin = []Endpoints{
	{
		Name:          "future",
		Registry:      "registry.lain.ein.plus",
		Domain:        "lain.ein.plus",
		Phase:         "ein",
		IngressDomain: "future.ein.plus",
		GrafanaURL:    "http://grafana.future.ein.plus/d/7sl4vJAZk/docker-monitoring",
		Kibana:        "kibana.future.ein.plus",
	},
	{
		Name:          "bei",
		Registry:      "registry.dev.ein.plus",
		Domain:        "poc.ein.plus",
		Phase:         "test",
		IngressDomain: "bei.ein.plus",
	},
}

// legacy clusters are served by legacy_lain; commands naming them are passed through.
var legacy = map[string]bool{
	"azure": true,
	"ein":   true,
	"poc":   true,
	"test":  true,
}

// IsLegacy reports whether name is a cluster handled by legacy_lain.
func IsLegacy(name string) bool {
	return legacy[name]
}

// Registry holds every cluster known to this invocation.
type Registry struct {
	clusters map[string]Endpoints
}

// NewRegistry creates an empty cluster registry
func NewRegistry() *Registry {
	return &Registry{
		clusters: make(map[string]Endpoints),
	}
}

// Register adds a cluster to the registry
func (r *Registry) Register(e Endpoints) error {
	if e.Name == "" {
		return fmt.Errorf("cluster name must not be empty")
	}
	if _, exists := r.clusters[e.Name]; exists {
		return fmt.Errorf("cluster %s already registered", e.Name)
	}
	r.clusters[e.Name] = e
	return nil
}

// Names returns all registered cluster names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clusters))
	for name := range r.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the endpoints of name. Non-empty fields of override win over
// the registered record; the registered record itself is never modified.
func (r *Registry) Resolve(name string, override Endpoints) (Endpoints, error) {
	base, ok := r.clusters[name]
	if !ok {
		return Endpoints{}, lainerr.New(lainerr.UserInput, lainerr.ErrUnknownCluster,
			"cluster %q is not defined, choose from: %s", name, strings.Join(r.Names(), ", "))
	}

	derived := base
	override.Name = ""
	if err := mergo.Merge(&derived, override, mergo.WithOverride); err != nil {
		return Endpoints{}, fmt.Errorf("failed to apply cluster override: %w", err)
	}

	return derived, nil
}

// DefaultRegistry creates a registry with the built-in clusters plus any
// cluster declared in the user configuration.
func DefaultRegistry(cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()

	for _, e := range builtin {
		if user, ok := cfg.Clusters[e.Name]; ok {
			if err := mergo.Merge(&e, fromConfig(e.Name, user), mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge cluster %s: %w", e.Name, err)
			}
		}
		if err := registry.Register(e); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(cfg.Clusters))
	for name := range cfg.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ok := registry.clusters[name]; ok {
			continue
		}
		user := cfg.Clusters[name]
		if user.Domain == "" && user.Registry == "" {
			return nil, lainerr.New(lainerr.UserInput, lainerr.ErrUnknownCluster,
				"cluster %q in user config needs at least a domain or a registry", name)
		}

		e := templated(name, user.Domain)
		if err := mergo.Merge(&e, fromConfig(name, user), mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge cluster %s: %w", name, err)
		}
		if err := registry.Register(e); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func fromConfig(name string, c config.ClusterConfig) Endpoints {
	return Endpoints{
		Name:          name,
		Registry:      c.Registry,
		Domain:        c.Domain,
		Console:       c.Console,
		Entry:         c.Entry,
		LVault:        c.LVault,
		Phase:         c.Phase,
		IngressDomain: c.IngressDomain,
	}
}

// templated derives the conventional service hosts of a cluster from its domain.
func templated(name, domain string) Endpoints {
	e := Endpoints{Name: name, Domain: domain, Phase: name}
	if domain == "" {
		return e
	}
	e.Registry = "registry." + domain
	e.Console = "console." + domain
	e.Entry = "entry." + domain
	e.LVault = "lvault." + domain
	e.IngressDomain = domain
	return e
}
