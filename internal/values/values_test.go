package values

import (
	"errors"
	"os"
	"testing"

	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func base() map[string]interface{} {
	return map[string]interface{}{
		"appname": "dummy",
		"deployments": map[string]interface{}{
			"web": map[string]interface{}{
				"replicaCount": 1,
				"memory":       "80M",
				"command":      []interface{}{"/lain/app/run.py"},
				"env":          map[string]interface{}{"FOO": "BAR"},
			},
		},
		"volumeMounts": []interface{}{
			map[string]interface{}{"mountPath": "/lain/app/deploy/topsecret.txt", "subPath": "topsecret.txt"},
		},
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Scalar, KindOf(nil))
	assert.Equal(t, Scalar, KindOf("x"))
	assert.Equal(t, Scalar, KindOf(3))
	assert.Equal(t, Scalar, KindOf([]byte("x")))
	assert.Equal(t, Sequence, KindOf([]interface{}{}))
	assert.Equal(t, Sequence, KindOf([]string{"a"}))
	assert.Equal(t, Mapping, KindOf(map[string]interface{}{}))
	assert.Equal(t, Mapping, KindOf(map[string]string{}))
}

func TestMerge_EmptyLayerIsIdentity(t *testing.T) {
	got, drifts := Merge(base(), map[string]interface{}{})
	assert.Equal(t, base(), got)
	assert.Empty(t, drifts)

	got, drifts = Merge(base(), nil)
	assert.Equal(t, base(), got)
	assert.Empty(t, drifts)
}

func TestMerge_RecursesIntoMappings(t *testing.T) {
	got, drifts := Merge(base(), map[string]interface{}{
		"deployments": map[string]interface{}{
			"web": map[string]interface{}{
				"replicaCount": 3,
				"env":          map[string]interface{}{"SPAM": "EGG"},
			},
		},
	})
	require.Empty(t, drifts)

	web := got["deployments"].(map[string]interface{})["web"].(map[string]interface{})
	assert.Equal(t, 3, web["replicaCount"])
	assert.Equal(t, "80M", web["memory"])
	assert.Equal(t, map[string]interface{}{"FOO": "BAR", "SPAM": "EGG"}, web["env"])
}

func TestMerge_TypeMismatchReplacesWholesale(t *testing.T) {
	tests := []struct {
		name     string
		layer    map[string]interface{}
		key      string
		want     interface{}
		existing Kind
		incoming Kind
	}{
		{
			name:     "scalar replaces mapping",
			layer:    map[string]interface{}{"deployments": "none"},
			key:      "deployments",
			want:     "none",
			existing: Mapping,
			incoming: Scalar,
		},
		{
			name:     "scalar replaces sequence",
			layer:    map[string]interface{}{"volumeMounts": "off"},
			key:      "volumeMounts",
			want:     "off",
			existing: Sequence,
			incoming: Scalar,
		},
		{
			name:     "mapping replaces scalar",
			layer:    map[string]interface{}{"appname": map[string]interface{}{"a": 1}},
			key:      "appname",
			want:     map[string]interface{}{"a": 1},
			existing: Scalar,
			incoming: Mapping,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, drifts := Merge(base(), tt.layer)
			assert.Equal(t, tt.want, got[tt.key])
			require.Len(t, drifts, 1)
			assert.Equal(t, tt.key, drifts[0].Path)
			assert.Equal(t, tt.existing, drifts[0].Existing)
			assert.Equal(t, tt.incoming, drifts[0].Incoming)
		})
	}
}

func TestMerge_SequencesAreReplacedNotAppended(t *testing.T) {
	got, drifts := Merge(base(), map[string]interface{}{"volumeMounts": []interface{}{}})
	assert.Empty(t, drifts)
	assert.Equal(t, []interface{}{}, got["volumeMounts"])
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	b := base()
	layer := map[string]interface{}{
		"deployments": map[string]interface{}{"web": map[string]interface{}{"memory": "1Gi"}},
	}

	got, _ := Merge(b, layer)
	got["deployments"].(map[string]interface{})["web"].(map[string]interface{})["memory"] = "2Gi"
	got["volumeMounts"].([]interface{})[0].(map[string]interface{})["subPath"] = "changed"

	assert.Equal(t, base(), b)
	assert.Equal(t, "1Gi", layer["deployments"].(map[string]interface{})["web"].(map[string]interface{})["memory"])
}

func TestMerge_Associative(t *testing.T) {
	a := base()
	b := map[string]interface{}{
		"deployments": map[string]interface{}{"web": map[string]interface{}{"replicaCount": 2}},
		"cluster":     "bei",
	}
	c := map[string]interface{}{
		"deployments": map[string]interface{}{
			"web":    map[string]interface{}{"memory": "1Gi"},
			"worker": map[string]interface{}{"memory": "2Gi"},
		},
		"cluster": "future",
	}

	ab, _ := Merge(a, b)
	left, _ := Merge(ab, c)

	bc, _ := Merge(b, c)
	right, _ := Merge(a, bc)

	assert.Equal(t, left, right)
}

func TestMerge_AssociativityBreaksOnShapeMismatch(t *testing.T) {
	a := map[string]interface{}{"x": map[string]interface{}{"keep": 1}}
	b := map[string]interface{}{"x": "scalar"}
	c := map[string]interface{}{"x": map[string]interface{}{"new": 2}}

	ab, _ := Merge(a, b)
	left, _ := Merge(ab, c)
	bc, _ := Merge(b, c)
	right, _ := Merge(a, bc)

	assert.Equal(t, map[string]interface{}{"new": 2}, left["x"])
	assert.Equal(t, map[string]interface{}{"keep": 1, "new": 2}, right["x"])
}

func TestMerge_Deterministic(t *testing.T) {
	layer := map[string]interface{}{"a": "1", "b": map[string]interface{}{"c": 1}, "deployments": "x", "volumeMounts": 0}
	first, firstDrifts := Merge(base(), layer)
	for i := 0; i < 20; i++ {
		got, drifts := Merge(base(), layer)
		assert.Equal(t, first, got)
		assert.Equal(t, firstDrifts, drifts)
	}
}

func TestMergeLayers_NamesDrifts(t *testing.T) {
	_, drifts := MergeLayers(
		Layer{Name: "values.yaml", Tree: base()},
		Layer{Name: "values-bei.yaml", Tree: map[string]interface{}{"deployments": []interface{}{}}},
	)
	require.Len(t, drifts, 1)
	assert.Equal(t, "values-bei.yaml", drifts[0].Layer)
	assert.Equal(t, "values-bei.yaml: sequence replaces mapping at deployments", drifts[0].String())
}

func TestParsePair(t *testing.T) {
	p, err := ParsePair("imageTag=release-1-a")
	require.NoError(t, err)
	assert.Equal(t, Pair{Key: "imageTag", Value: "release-1-a"}, p)

	p, err = ParsePair("dsn=a=b")
	require.NoError(t, err)
	assert.Equal(t, Pair{Key: "dsn", Value: "a=b"}, p)

	for _, bad := range []string{"novalue", "=x", ""} {
		_, err := ParsePair(bad)
		assert.ErrorIs(t, err, lainerr.ErrInvalidKVPair, bad)
	}

	_, err = ParsePairs([]string{"a=1", "broken"})
	assert.ErrorIs(t, err, lainerr.ErrInvalidKVPair)
}

func TestEffective_LayerOrder(t *testing.T) {
	var requested []string
	resolve := func(tag string) (string, error) {
		requested = append(requested, tag)
		return "release-200-b", nil
	}

	tree, err := Effective(Input{
		Base: base(),
		Override: map[string]interface{}{
			"deployments": map[string]interface{}{"web": map[string]interface{}{"replicaCount": 2}},
			"cluster":     "from-file",
			"debug":       "file",
		},
		OverrideFile: "chart/values-bei.yaml",
		Pairs: []Pair{
			{Key: "debug", Value: "cli"},
			{Key: ImageTagKey, Value: "200-b"},
		},
		Registry: "registry.dev.ein.plus",
		Cluster:  "bei",
	}, resolve)
	require.NoError(t, err)

	assert.Equal(t, []string{"200-b"}, requested)
	assert.Equal(t, "release-200-b", tree[ImageTagKey])
	assert.Equal(t, "registry.dev.ein.plus", tree["registry"])
	assert.Equal(t, "bei", tree["cluster"])
	assert.Equal(t, "cli", tree["debug"])
	assert.Equal(t, 2, tree["deployments"].(map[string]interface{})["web"].(map[string]interface{})["replicaCount"])
}

func TestEffective_NoExplicitTag(t *testing.T) {
	var requested []string
	_, err := Effective(Input{Base: base()}, func(tag string) (string, error) {
		requested = append(requested, tag)
		return "release-1-a", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, requested)
}

func TestEffective_TypedPairs(t *testing.T) {
	resolve := func(string) (string, error) { return "release-1-a", nil }

	tests := []struct {
		name  string
		pairs []Pair
		check func(t *testing.T, tree map[string]interface{})
	}{
		{
			name:  "bool",
			pairs: []Pair{{Key: "debug", Value: "false"}},
			check: func(t *testing.T, tree map[string]interface{}) {
				assert.Equal(t, false, tree["debug"])
			},
		},
		{
			name:  "int",
			pairs: []Pair{{Key: "replicaCount", Value: "3"}},
			check: func(t *testing.T, tree map[string]interface{}) {
				assert.Equal(t, int64(3), tree["replicaCount"])
			},
		},
		{
			name:  "dotted key reaches into a deployment",
			pairs: []Pair{{Key: "deployments.web.replicaCount", Value: "4"}},
			check: func(t *testing.T, tree map[string]interface{}) {
				web := tree["deployments"].(map[string]interface{})["web"].(map[string]interface{})
				assert.Equal(t, int64(4), web["replicaCount"])
				assert.Equal(t, "80M", web["memory"])
			},
		},
		{
			name:  "plain string",
			pairs: []Pair{{Key: "greeting", Value: "hello"}},
			check: func(t *testing.T, tree map[string]interface{}) {
				assert.Equal(t, "hello", tree["greeting"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base()
			b["debug"] = true
			tree, err := Effective(Input{Base: b, Pairs: tt.pairs}, resolve)
			require.NoError(t, err)
			tt.check(t, tree)
		})
	}

	t.Run("rendered without quotes", func(t *testing.T) {
		tree, err := Effective(Input{Base: base(), Pairs: []Pair{{Key: "debug", Value: "false"}, {Key: "replicaCount", Value: "3"}}}, resolve)
		require.NoError(t, err)
		out, err := Marshal(tree)
		require.NoError(t, err)
		assert.Contains(t, string(out), "debug: false\n")
		assert.Contains(t, string(out), "replicaCount: 3\n")
	})

	t.Run("malformed key", func(t *testing.T) {
		_, err := Effective(Input{Base: base(), Pairs: []Pair{{Key: "a[", Value: "1"}}}, resolve)
		require.Error(t, err)
		assert.ErrorIs(t, err, lainerr.ErrInvalidKVPair)
	})
}

func TestEffective_ResolverFailureAborts(t *testing.T) {
	boom := errors.New("boom")
	_, err := Effective(Input{Base: base()}, func(string) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
}

func TestEffective_StrictRejectsShapeDrift(t *testing.T) {
	called := false
	_, err := Effective(Input{
		Base:         base(),
		Override:     map[string]interface{}{"volumeMounts": "none"},
		OverrideFile: "chart/values-bei.yaml",
		Strict:       true,
	}, func(string) (string, error) {
		called = true
		return "release-1-a", nil
	})

	require.ErrorIs(t, err, lainerr.ErrShapeMismatch)
	assert.Contains(t, err.Error(), "volumeMounts")
	assert.False(t, called)
}

func TestEffective_PermissiveReplacesOnShapeDrift(t *testing.T) {
	tree, err := Effective(Input{
		Base:         base(),
		Override:     map[string]interface{}{"volumeMounts": "none"},
		OverrideFile: "chart/values-bei.yaml",
	}, func(string) (string, error) { return "release-1-a", nil })

	require.NoError(t, err)
	assert.Equal(t, "none", tree["volumeMounts"])
}

func TestWriteTemp(t *testing.T) {
	path, err := WriteTemp(t.TempDir(), base())
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, yaml.Unmarshal(b, &got))
	assert.Equal(t, "dummy", got["appname"])
}

func TestTreeAccessors(t *testing.T) {
	tree := base()
	tree["deployments"].(map[string]interface{})["worker"] = map[string]interface{}{"memory": "2Gi"}
	tree["deployments"].(map[string]interface{})["tiny"] = map[string]interface{}{}
	tree["cronjobs"] = map[string]interface{}{"cleanup": map[string]interface{}{}}
	tree["ingresses"] = []interface{}{map[string]interface{}{"host": "dummy"}}
	tree["externalIngresses"] = []interface{}{map[string]interface{}{"host": "dummy.example.com"}}

	name, err := Appname(tree)
	require.NoError(t, err)
	assert.Equal(t, "dummy", name)

	assert.Equal(t, []string{"tiny", "web", "worker"}, DeploymentNames(tree))
	assert.Equal(t, []string{"cleanup"}, CronJobNames(tree))
	assert.Equal(t, []string{"topsecret.txt"}, SecretSubPaths(tree))

	internal, external := IngressHosts(tree)
	assert.Equal(t, []string{"dummy"}, internal)
	assert.Equal(t, []string{"dummy.example.com"}, external)

	best, err := BestDeployment(tree)
	require.NoError(t, err)
	assert.Equal(t, "worker", best)

	require.NoError(t, CheckDeployments(tree, []string{"web", "worker"}))
	err = CheckDeployments(tree, []string{"web", "nope"})
	assert.ErrorIs(t, err, lainerr.ErrUnknownDeployment)
	assert.Contains(t, err.Error(), "nope")

	assert.False(t, HasBuild(tree))
	_, err = Appname(map[string]interface{}{})
	assert.ErrorIs(t, err, lainerr.ErrNotLainApp)
}

func TestBestDeployment_DefaultMemory(t *testing.T) {
	tree := map[string]interface{}{
		"deployments": map[string]interface{}{
			"small": map[string]interface{}{"memory": "80M"},
			"plain": map[string]interface{}{},
		},
	}

	best, err := BestDeployment(tree)
	require.NoError(t, err)
	assert.Equal(t, "plain", best)
}
