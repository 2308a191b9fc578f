package image

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	tags  []string
	err   error
	calls int
}

func (f *fakeLister) ListTags(_ context.Context, _, _ string) ([]string, error) {
	f.calls++
	return f.tags, f.err
}

func metaReturning(tag string) MetaFunc {
	return func(context.Context) (string, error) { return tag, nil }
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "release-200-b", Normalize("200-b"))
	assert.Equal(t, "release-200-b", Normalize("release-200-b"))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("release-1588000000-abcdef0"))
	assert.False(t, Valid("latest"))
	assert.False(t, Valid("release-abc-def"))
	assert.False(t, Valid("release-1-a-b"))
	assert.False(t, Valid("meta-1-a"))
}

func TestRecent(t *testing.T) {
	tags := []string{"release-100-a", "latest", "release-200-b", "release-99-z", "hotfix", "release-1000-c"}
	in := append([]string(nil), tags...)

	assert.Equal(t, []string{"release-1000-c", "release-200-b", "release-100-a", "release-99-z"}, Recent(tags))
	assert.Equal(t, in, tags)
}

func TestResolver_ExplicitTag(t *testing.T) {
	lister := &fakeLister{tags: []string{"release-100-a", "release-200-b", "latest"}}
	r := &Resolver{Lister: lister, Meta: func(context.Context) (string, error) {
		t.Fatal("meta must not be consulted for an explicit tag")
		return "", nil
	}}

	tag, err := r.Resolve(context.Background(), "200-b", "dummy", "registry.dev.ein.plus", CallerDeploy)
	require.NoError(t, err)
	assert.Equal(t, "release-200-b", tag)
}

func TestResolver_MissingTagListsSuggestions(t *testing.T) {
	lister := &fakeLister{tags: []string{"release-100-a", "release-200-b", "latest"}}
	r := &Resolver{Lister: lister, Meta: metaReturning("")}

	_, err := r.Resolve(context.Background(), "release-999-zzz", "dummy", "registry.dev.ein.plus", CallerDeploy)
	require.ErrorIs(t, err, lainerr.ErrImageNotFound)
	assert.Equal(t, lainerr.Precondition, lainerr.CategoryOf(err))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "registry.dev.ein.plus/dummy:release-999-zzz", nf.Image)
	assert.Equal(t, []string{"release-200-b", "release-100-a"}, nf.Suggestions)
	assert.Equal(t, "lain deploy --set imageTag=release-200-b", nf.Remedy)
	assert.Equal(t, "http://registry.dev.ein.plus/v2/dummy/tags/list", nf.TagsURL)

	remedy := lainerr.RemedyOf(err)
	assert.Contains(t, remedy, "lain deploy --set imageTag=release-200-b")
	assert.NotContains(t, remedy, "latest")
	assert.Less(t, strings.Index(remedy, "release-200-b\n"), strings.Index(remedy, "release-100-a\n"))
}

func TestResolver_InvalidShapeIsNotPresent(t *testing.T) {
	r := &Resolver{Lister: &fakeLister{tags: []string{"release-latest", "release-1-a"}}, Meta: metaReturning("")}

	_, err := r.Resolve(context.Background(), "release-latest", "dummy", "registry", CallerDeploy)
	assert.ErrorIs(t, err, lainerr.ErrImageNotFound)
}

func TestResolver_SuggestionsCappedAtFive(t *testing.T) {
	var tags []string
	for _, ts := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		tags = append(tags, "release-"+ts+"-x")
	}
	r := &Resolver{Lister: &fakeLister{tags: tags}, Meta: metaReturning("")}

	_, err := r.Resolve(context.Background(), "nope", "dummy", "registry", CallerUpdateImage)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"release-7-x", "release-6-x", "release-5-x", "release-4-x", "release-3-x"}, nf.Suggestions)
	assert.Equal(t, "lain update-image --deduce", nf.Remedy)
}

func TestResolver_DefaultTagFromMeta(t *testing.T) {
	r := &Resolver{Lister: &fakeLister{tags: []string{"release-300-c"}}, Meta: metaReturning("300-c\n")}

	tag, err := r.Resolve(context.Background(), "", "dummy", "registry", CallerDeploy)
	require.NoError(t, err)
	assert.Equal(t, "release-300-c", tag)
}

func TestResolver_MetaFailure(t *testing.T) {
	boom := errors.New("legacy_lain exploded")
	r := &Resolver{Lister: &fakeLister{}, Meta: func(context.Context) (string, error) { return "", boom }}

	_, err := r.Resolve(context.Background(), "", "dummy", "registry", CallerDeploy)
	assert.ErrorIs(t, err, boom)
}

func TestResolver_ListerFailure(t *testing.T) {
	unreachable := lainerr.New(lainerr.TransientNetwork, errors.New("dial tcp: refused"), "failed to list tags")
	r := &Resolver{Lister: &fakeLister{err: unreachable}, Meta: metaReturning("1-a")}

	_, err := r.Resolve(context.Background(), "", "dummy", "registry", CallerDeploy)
	assert.Equal(t, lainerr.TransientNetwork, lainerr.CategoryOf(err))
}

func TestResolver_NoTagsAtAll(t *testing.T) {
	r := &Resolver{Lister: &fakeLister{}, Meta: metaReturning("")}

	_, err := r.Resolve(context.Background(), "1-a", "dummy", "registry", CallerDeploy)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Empty(t, nf.Suggestions)
	assert.Empty(t, nf.Remedy)
}

func TestResolver_Deduce(t *testing.T) {
	r := &Resolver{Lister: &fakeLister{tags: []string{"latest", "release-100-a", "release-200-b"}}}
	tag, err := r.Deduce(context.Background(), "dummy", "registry")
	require.NoError(t, err)
	assert.Equal(t, "release-200-b", tag)

	r = &Resolver{Lister: &fakeLister{tags: []string{"latest"}}}
	_, err = r.Deduce(context.Background(), "dummy", "registry")
	assert.ErrorIs(t, err, lainerr.ErrNoImages)
}

func newFakeRegistry(t *testing.T, repos map[string][]string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/" {
			w.WriteHeader(http.StatusOK)
			return
		}

		repo := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v2/"), "/tags/list")
		tags, ok := repos[repo]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"errors": []map[string]string{{"code": "NAME_UNKNOWN", "message": "repository name not known to registry"}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"name": repo, "tags": tags})
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestRegistryLister_ListTags(t *testing.T) {
	registry := newFakeRegistry(t, map[string][]string{
		"dummy": {"latest", "release-100-a", "release-200-b"},
	})
	lister := NewRegistryLister()

	tags, err := lister.ListTags(context.Background(), registry, "dummy")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"latest", "release-100-a", "release-200-b"}, tags)

	tags, err = lister.ListTags(context.Background(), registry, "missing")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestRegistryLister_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	registry := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	_, err := NewRegistryLister().ListTags(context.Background(), registry, "dummy")
	require.Error(t, err)
	assert.Equal(t, lainerr.TransientNetwork, lainerr.CategoryOf(err))
}
