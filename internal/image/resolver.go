package image

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/lainerr"
)

// MaxSuggestions caps the tags listed when a requested image is missing.
const MaxSuggestions = 5

// Caller decides which remediation command a missing image suggests.
type Caller int

const (
	CallerDeploy Caller = iota
	CallerUpdateImage
)

// NotFoundError reports a requested image absent from the registry.
type NotFoundError struct {
	Image string
	// Suggestions are existing valid tags, newest first.
	Suggestions []string
	Remedy      string
	TagsURL     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("image not found: %s", e.Image)
}

func (e *NotFoundError) Unwrap() error {
	return lainerr.ErrImageNotFound
}

// Guidance is the multi-line help printed for the user.
func (e *NotFoundError) Guidance() string {
	var b strings.Builder
	fmt.Fprintf(&b, "If you really need to deploy this version, do a lain build + push first.\n")
	if e.Remedy != "" {
		fmt.Fprintf(&b, "If you'd like to deploy the latest existing image:\n    %s\n", e.Remedy)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, "If you'd like to choose an existing image, here's some recent image tags for you to copy:\n")
		for _, t := range e.Suggestions {
			fmt.Fprintf(&b, "    %s\n", t)
		}
	}
	fmt.Fprintf(&b, "You can check out the rest at %s", e.TagsURL)
	return b.String()
}

// MetaFunc returns the default tag for the current source tree, as computed
// by the legacy build tool.
type MetaFunc func(ctx context.Context) (string, error)

// Resolver picks and verifies the image tag to deploy.
type Resolver struct {
	Lister TagLister
	Meta   MetaFunc
}

// Resolve returns the normalized, verified tag for appname. When requested
// is empty the tag comes from Meta. The tag must be among the valid release
// tags on registry; anything else fails closed with a NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, requested, appname, registry string, caller Caller) (string, error) {
	tag := strings.TrimSpace(requested)
	if tag == "" {
		meta, err := r.Meta(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to obtain default image tag: %w", err)
		}
		tag = strings.TrimSpace(meta)
		log.Debug("Using image tag from legacy_lain meta", "tag", tag)
	}
	tag = Normalize(tag)

	recent, err := r.recent(ctx, appname, registry)
	if err != nil {
		return "", err
	}

	for _, t := range recent {
		if t == tag {
			return tag, nil
		}
	}

	nf := &NotFoundError{
		Image:   Reference(registry, appname, tag),
		TagsURL: TagsURL(registry, appname),
	}
	if len(recent) > 0 {
		nf.Suggestions = recent[:min(len(recent), MaxSuggestions)]
		switch caller {
		case CallerUpdateImage:
			nf.Remedy = "lain update-image --deduce"
		default:
			nf.Remedy = "lain deploy --set imageTag=" + recent[0]
		}
	}

	return "", lainerr.New(lainerr.Precondition, nf, "cannot deploy %s", appname).WithRemedy(nf.Guidance())
}

// Deduce returns the newest valid tag of appname on registry.
func (r *Resolver) Deduce(ctx context.Context, appname, registry string) (string, error) {
	recent, err := r.recent(ctx, appname, registry)
	if err != nil {
		return "", err
	}
	if len(recent) == 0 {
		return "", lainerr.New(lainerr.Precondition, lainerr.ErrNoImages, "wow, there's no pushed image at all for %s", appname).
			WithRemedy("lain build && lain push")
	}
	return recent[0], nil
}

func (r *Resolver) recent(ctx context.Context, appname, registry string) ([]string, error) {
	tags, err := r.Lister.ListTags(ctx, registry, appname)
	if err != nil {
		return nil, err
	}
	return Recent(tags), nil
}
