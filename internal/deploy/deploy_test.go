package deploy

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ein-plus/lain/internal/cluster"
	"github.com/ein-plus/lain/internal/helm"
	"github.com/ein-plus/lain/internal/image"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/secret"
	"github.com/ein-plus/lain/internal/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/release"
)

type mockInstaller struct {
	mock.Mock
}

func (m *mockInstaller) Status(ctx context.Context, name string) (*helm.ReleaseStatus, error) {
	args := m.Called(ctx, name)
	status, _ := args.Get(0).(*helm.ReleaseStatus)
	return status, args.Error(1)
}

func (m *mockInstaller) UpgradeInstall(ctx context.Context, req helm.UpgradeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockInstaller) Lint(ctx context.Context, chartDir string) error {
	return m.Called(ctx, chartDir).Error(0)
}

type mockSecrets struct {
	mock.Mock
}

func (m *mockSecrets) Lookup(ctx context.Context, name string) (*secret.Decoded, error) {
	args := m.Called(ctx, name)
	d, _ := args.Get(0).(*secret.Decoded)
	return d, args.Error(1)
}

func (m *mockSecrets) Ensure(ctx context.Context, name string, kind secret.Kind) error {
	return m.Called(ctx, name, kind).Error(0)
}

type fakeResolver struct {
	tags []string
}

func (f *fakeResolver) Resolve(ctx context.Context, requested, appname, registry string, caller image.Caller) (string, error) {
	r := &image.Resolver{
		Lister: listerFunc(func(context.Context, string, string) ([]string, error) { return f.tags, nil }),
		Meta:   func(context.Context) (string, error) { return "1588000000-abcdef0", nil },
	}
	return r.Resolve(ctx, requested, appname, registry, caller)
}

type listerFunc func(ctx context.Context, registry, repository string) ([]string, error)

func (f listerFunc) ListTags(ctx context.Context, registry, repository string) ([]string, error) {
	return f(ctx, registry, repository)
}

var bei = cluster.Endpoints{
	Name:          "bei",
	Registry:      "registry.dev.ein.plus",
	IngressDomain: "bei.ein.plus",
	Kibana:        "kibana.bei.ein.plus",
}

const valuesYAML = `appname: dummy
deployments:
  web:
    replicaCount: 1
    memory: 80Mi
    containerPort: 5000
volumeMounts:
  - mountPath: /lain/app/deploy/topsecret.txt
    subPath: topsecret.txt
ingresses:
  - host: dummy
    deployName: web
    paths: ["/"]
`

func writeChart(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "chart")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Chart.yaml"), []byte("apiVersion: v2\nname: dummy\nversion: 0.1.0\n"), 0o644))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

type fixture struct {
	installer *mockInstaller
	secrets   *mockSecrets
	out       *bytes.Buffer
	o         *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		installer: &mockInstaller{},
		secrets:   &mockSecrets{},
		out:       &bytes.Buffer{},
	}
	f.o = &Orchestrator{
		Installer: f.installer,
		Secrets:   f.secrets,
		Resolver:  &fakeResolver{tags: []string{"release-100-a", "release-200-b", "latest"}},
		Out:       f.out,
	}
	return f
}

func (f *fixture) secretFiles(keys ...string) {
	data := map[string]string{}
	for _, k := range keys {
		data[k] = "x"
	}
	f.secrets.On("Lookup", mock.Anything, "dummy-secret").Return(&secret.Decoded{Data: data}, nil)
}

func TestDeploy_ChartMissingMakesNoInstallerCalls(t *testing.T) {
	f := newFixture()

	_, err := f.o.Deploy(context.Background(), Request{
		ChartDir: filepath.Join(t.TempDir(), "chart"),
		Cluster:  bei,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, lainerr.ErrChartMissing)
	assert.Equal(t, 1, lainerr.ExitCode(err))
	assert.Contains(t, lainerr.RemedyOf(err), "lain init")
	assert.Equal(t, Aborted, f.o.State())

	f.installer.AssertNotCalled(t, "UpgradeInstall", mock.Anything, mock.Anything)
	f.installer.AssertNotCalled(t, "Status", mock.Anything, mock.Anything)
	f.secrets.AssertNotCalled(t, "Ensure", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeploy_Succeeds(t *testing.T) {
	f := newFixture()
	chart := writeChart(t, map[string]string{
		"values.yaml":     valuesYAML,
		"values-bei.yaml": "deployments:\n  web:\n    replicaCount: 2\n",
	})
	f.secretFiles("topsecret.txt")
	f.installer.On("Status", mock.Anything, "dummy").Return(nil, nil)
	f.secrets.On("Ensure", mock.Anything, "dummy-env", secret.KindEnv).Return(nil)

	var rendered map[string]interface{}
	f.installer.On("UpgradeInstall", mock.Anything, mock.MatchedBy(func(req helm.UpgradeRequest) bool {
		return req.Release == "dummy" && req.ChartDir == chart && req.Timeout == 5*time.Minute
	})).Run(func(args mock.Arguments) {
		req := args.Get(1).(helm.UpgradeRequest)
		b, err := os.ReadFile(req.ValuesFile)
		require.NoError(t, err)
		assert.Contains(t, string(b), "imageTag: release-200-b")
		rendered = req.Values
	}).Return(nil)

	res, err := f.o.Deploy(context.Background(), Request{
		ChartDir: chart,
		Cluster:  bei,
		Pairs:    []values.Pair{{Key: "imageTag", Value: "200-b"}, {Key: "extra", Value: "1"}},
		Timeout:  5 * time.Minute,
		TempDir:  t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, f.o.State())
	assert.Equal(t, "dummy", res.Appname)
	assert.Equal(t, "release-200-b", res.ImageTag)

	assert.Equal(t, "registry.dev.ein.plus", rendered["registry"])
	assert.Equal(t, "bei", rendered["cluster"])
	assert.Equal(t, int64(1), rendered["extra"])
	web := rendered["deployments"].(map[string]interface{})["web"].(map[string]interface{})
	assert.Equal(t, 2, web["replicaCount"])
	assert.Equal(t, "80Mi", web["memory"])

	assert.Contains(t, f.out.String(), "lain status")
	assert.Contains(t, res.Toast, "kubectl get po -l app.kubernetes.io/name=dummy")
	assert.Contains(t, res.Toast, "http://dummy.bei.ein.plus")
	assert.Contains(t, res.Toast, "http://kibana.bei.ein.plus/app/logtrail#/?q=kubernetes.pod_name.keyword:dummy*")
	assert.NotContains(t, res.Toast, "grafana")

	f.installer.AssertNumberOfCalls(t, "UpgradeInstall", 1)
	f.secrets.AssertExpectations(t)
}

func TestDeploy_Aborts(t *testing.T) {
	tests := []struct {
		name   string
		values string
		pairs  []values.Pair
		setup  func(f *fixture)
		want   error
		remedy string
	}{
		{
			name:   "image not found",
			values: valuesYAML,
			pairs:  []values.Pair{{Key: "imageTag", Value: "release-999-zzz"}},
			setup:  func(f *fixture) {},
			want:   lainerr.ErrImageNotFound,
			remedy: "lain deploy --set imageTag=release-200-b",
		},
		{
			name:   "secret object missing",
			values: valuesYAML,
			pairs:  []values.Pair{{Key: "imageTag", Value: "release-100-a"}},
			setup: func(f *fixture) {
				f.secrets.On("Lookup", mock.Anything, "dummy-secret").Return(nil, nil)
			},
			want:   lainerr.ErrSecretMissing,
			remedy: "lain use bei\n    lain secret add topsecret.txt\n",
		},
		{
			name:   "secret file missing from secret",
			values: valuesYAML,
			pairs:  []values.Pair{{Key: "imageTag", Value: "release-100-a"}},
			setup:  func(f *fixture) { f.secretFiles("other.txt") },
			want:   lainerr.ErrSecretMissing,
			remedy: "lain secret add topsecret.txt",
		},
		{
			name:   "broken release",
			values: valuesYAML,
			pairs:  []values.Pair{{Key: "imageTag", Value: "release-100-a"}},
			setup: func(f *fixture) {
				f.secretFiles("topsecret.txt")
				f.installer.On("Status", mock.Anything, "dummy").
					Return(&helm.ReleaseStatus{Name: "dummy", Status: release.StatusPendingInstall}, nil)
			},
			want:   lainerr.ErrBrokenRelease,
			remedy: "helm delete dummy",
		},
		{
			name:   "not a lain app",
			values: "deployments: {}\n",
			setup:  func(f *fixture) {},
			want:   lainerr.ErrNotLainApp,
		},
		{
			name:   "malformed override under strict mode",
			values: valuesYAML,
			setup:  func(f *fixture) {},
			want:   lainerr.ErrShapeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)
			files := map[string]string{"values.yaml": tt.values}
			strict := false
			if errors.Is(tt.want, lainerr.ErrShapeMismatch) {
				files["values-bei.yaml"] = "deployments: []\n"
				strict = true
			}
			chart := writeChart(t, files)

			_, err := f.o.Deploy(context.Background(), Request{
				ChartDir: chart,
				Cluster:  bei,
				Pairs:    tt.pairs,
				Strict:   strict,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, lainerr.ExitCode(err))
			if tt.remedy != "" {
				assert.Contains(t, lainerr.RemedyOf(err), tt.remedy)
			}
			assert.Equal(t, Aborted, f.o.State())
			f.installer.AssertNotCalled(t, "UpgradeInstall", mock.Anything, mock.Anything)
			f.secrets.AssertNotCalled(t, "Ensure", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDeploy_InstallerFailurePropagatesWithoutRetry(t *testing.T) {
	f := newFixture()
	chart := writeChart(t, map[string]string{"values.yaml": valuesYAML})
	f.secretFiles("topsecret.txt")
	f.installer.On("Status", mock.Anything, "dummy").Return(&helm.ReleaseStatus{Status: release.StatusDeployed}, nil)
	f.secrets.On("Ensure", mock.Anything, "dummy-env", secret.KindEnv).Return(nil)
	f.installer.On("UpgradeInstall", mock.Anything, mock.Anything).Return(lainerr.Tool("helm", 4, nil))

	_, err := f.o.Deploy(context.Background(), Request{
		ChartDir: chart,
		Cluster:  bei,
		Pairs:    []values.Pair{{Key: "imageTag", Value: "release-100-a"}},
	})
	require.Error(t, err)
	assert.Equal(t, 4, lainerr.ExitCode(err))
	assert.Equal(t, Failed, f.o.State())
	f.installer.AssertNumberOfCalls(t, "UpgradeInstall", 1)
}

func TestToast_TruncatesLongLists(t *testing.T) {
	tree := map[string]interface{}{
		"deployments": map[string]interface{}{"a": nil, "b": nil, "c": nil},
		"cronjobs":    map[string]interface{}{"x": nil},
		"externalIngresses": []interface{}{
			map[string]interface{}{"host": "dummy.ein.plus"},
		},
	}

	toast, err := Toast("dummy", tree, cluster.Endpoints{GrafanaURL: "http://grafana"})
	require.NoError(t, err)

	assert.Contains(t, toast, "app.kubernetes.io/instance=dummy-a\n")
	assert.Contains(t, toast, "app.kubernetes.io/instance=dummy-b\n    ...\n")
	assert.NotContains(t, toast, "dummy-c")
	assert.Contains(t, toast, "kubectl create job --from=cronjob/dummy-x dummy-x-test")
	assert.Contains(t, toast, "http://dummy.ein.plus")
	assert.Contains(t, toast, "use grafana for monitoring:\n    http://grafana")
	assert.NotContains(t, toast, "kibana")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "PreconditionsChecked", PreconditionsChecked.String())
	assert.Equal(t, "State(42)", State(42).String())
}
