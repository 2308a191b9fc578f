// Package secret materializes the Kubernetes Secrets an app depends on: the
// env secret referenced through envFrom and the secret-file secret mounted
// through volumeMounts. Values are always handled decoded; encoding happens
// only on the way back to the cluster.
package secret

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/exttool"
	"github.com/ein-plus/lain/internal/lainerr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// Kind selects the example content a missing secret is created with.
type Kind string

const (
	KindEnv    Kind = "env"
	KindSecret Kind = "secret"
)

const (
	ExampleEnvKey      = "FOO"
	ExampleEnvValue    = "BAR"
	ExampleFile        = "topsecret.txt"
	ExampleFileContent = "I\nAM\nBATMAN"

	lastAppliedAnnotation = "kubectl.kubernetes.io/last-applied-configuration"
)

// EnvName is the secret holding app's environment variables.
func EnvName(appname string) string {
	return appname + "-env"
}

// FilesName is the secret holding app's secret files.
func FilesName(appname string) string {
	return appname + "-secret"
}

// Decoded is a Secret whose values are plain strings.
type Decoded struct {
	Meta metav1.ObjectMeta
	Type corev1.SecretType
	Data map[string]string
}

// Keys returns the data keys.
func (d *Decoded) Keys() []string {
	keys := make([]string, 0, len(d.Data))
	for k := range d.Data {
		keys = append(keys, k)
	}
	return keys
}

// Decode strips server-managed metadata and decodes every value.
func Decode(sec *corev1.Secret) *Decoded {
	meta := *sec.ObjectMeta.DeepCopy()
	meta.CreationTimestamp = metav1.Time{}
	meta.SelfLink = ""
	meta.UID = ""
	meta.ResourceVersion = ""
	meta.ManagedFields = nil
	delete(meta.Annotations, lastAppliedAnnotation)
	if len(meta.Annotations) == 0 {
		meta.Annotations = nil
	}

	d := &Decoded{Meta: meta, Type: sec.Type, Data: map[string]string{}}
	for k, v := range sec.Data {
		d.Data[k] = string(v)
	}
	for k, v := range sec.StringData {
		d.Data[k] = v
	}
	return d
}

// Encode is the inverse of Decode.
func Encode(d *Decoded) *corev1.Secret {
	sec := &corev1.Secret{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: *d.Meta.DeepCopy(),
		Type:       d.Type,
		Data:       make(map[string][]byte, len(d.Data)),
	}
	for k, v := range d.Data {
		sec.Data[k] = []byte(v)
	}
	return sec
}

// Store fetches and applies secrets through kubectl.
type Store struct {
	Kubectl *exttool.Kubectl
	// TempDir holds example files and edit buffers, os.TempDir() when empty.
	TempDir string
}

func isNotFound(res *exttool.Result) bool {
	stderr := string(res.Stderr)
	return strings.Contains(stderr, "NotFound") || strings.Contains(stderr, "not found")
}

// Lookup returns the decoded secret, or nil when it does not exist.
func (s *Store) Lookup(ctx context.Context, name string) (*Decoded, error) {
	res, err := s.Kubectl.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		if isNotFound(res) {
			return nil, nil
		}
		return nil, res.Err()
	}

	var sec corev1.Secret
	if err := json.Unmarshal(res.Stdout, &sec); err != nil {
		return nil, fmt.Errorf("failed to decode secret %s: %w", name, err)
	}
	return Decode(&sec), nil
}

// Ensure creates the secret with example content when it does not exist.
func (s *Store) Ensure(ctx context.Context, name string, kind Kind) error {
	d, err := s.Lookup(ctx, name)
	if err != nil || d != nil {
		return err
	}
	return s.create(ctx, name, kind)
}

func (s *Store) create(ctx context.Context, name string, kind Kind) error {
	log.Info("Creating secret with example content", "name", name, "kind", kind)

	var (
		res *exttool.Result
		err error
	)
	switch kind {
	case KindEnv:
		res, err = s.Kubectl.CreateSecretFromLiteral(ctx, name, ExampleEnvKey, ExampleEnvValue)
	case KindSecret:
		dir, derr := os.MkdirTemp(s.TempDir, "lain-secret-")
		if derr != nil {
			return fmt.Errorf("failed to create temporary directory: %w", derr)
		}
		defer os.RemoveAll(dir)

		example := filepath.Join(dir, ExampleFile)
		if werr := os.WriteFile(example, []byte(ExampleFileContent), 0o600); werr != nil {
			return fmt.Errorf("failed to write example secret file: %w", werr)
		}
		res, err = s.Kubectl.CreateSecretFromFile(ctx, name, example)
	default:
		return fmt.Errorf("unknown secret kind %q", kind)
	}
	if err != nil {
		return err
	}
	return res.Err()
}

// Fetch returns the decoded secret, creating it with example content first
// when it does not exist.
func (s *Store) Fetch(ctx context.Context, name string, kind Kind) (*Decoded, error) {
	if err := s.Ensure(ctx, name, kind); err != nil {
		return nil, err
	}

	d, err := s.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, lainerr.New(lainerr.ExternalTool, lainerr.ErrSecretMissing, "secret %s vanished right after creation", name)
	}
	return d, nil
}

// Manifest renders d as the encoded manifest kubectl applies.
func Manifest(d *Decoded) ([]byte, error) {
	b, err := yaml.Marshal(Encode(d))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal secret %s: %w", d.Meta.Name, err)
	}
	return b, nil
}

// Apply encodes d and applies it.
func (s *Store) Apply(ctx context.Context, d *Decoded) error {
	manifest, err := Manifest(d)
	if err != nil {
		return err
	}

	res, err := s.Kubectl.Apply(ctx, manifest)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		// stderr already reached the terminal
		return lainerr.Tool("kubectl", res.ExitCode, nil)
	}
	return nil
}

// Add merges entries into the secret and applies it.
func (s *Store) Add(ctx context.Context, name string, kind Kind, entries map[string]string) error {
	d, err := s.Fetch(ctx, name, kind)
	if err != nil {
		return err
	}
	for k, v := range entries {
		d.Data[k] = v
	}
	return s.Apply(ctx, d)
}
