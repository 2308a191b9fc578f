package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
)

// DefaultListTimeout bounds a single tag listing request.
const DefaultListTimeout = 2 * time.Second

// TagLister lists every tag of a repository on a registry.
type TagLister interface {
	ListTags(ctx context.Context, registry, repository string) ([]string, error)
}

// RegistryLister lists tags through the registry v2 API.
type RegistryLister struct {
	// Insecure talks plain HTTP, which legacy lain registries require.
	Insecure bool
	Timeout  time.Duration
}

// NewRegistryLister returns a lister for plain-HTTP lain registries.
func NewRegistryLister() *RegistryLister {
	return &RegistryLister{Insecure: true, Timeout: DefaultListTimeout}
}

// ListTags returns the raw tag list. A repository the registry has never
// seen yields no tags rather than an error.
func (l *RegistryLister) ListTags(ctx context.Context, registry, repository string) ([]string, error) {
	var opts []name.Option
	if l.Insecure {
		opts = append(opts, name.Insecure)
	}

	repo, err := name.NewRepository(registry+"/"+repository, opts...)
	if err != nil {
		return nil, lainerr.New(lainerr.UserInput, err, "invalid repository %s/%s", registry, repository)
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultListTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Debug("Listing image tags", "repository", repo.String())
	tags, err := remote.List(repo,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	)
	if err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, lainerr.New(lainerr.TransientNetwork, err, "failed to list tags of %s", repo.String()).
			WithRemedy(fmt.Sprintf("check that %s is reachable, then try again", registry))
	}

	return tags, nil
}
