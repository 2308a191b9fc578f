package secret

import (
	"encoding/base64"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
)

// value renders multi-line strings as literal blocks so secret files stay
// readable in an editor.
type value string

func (v value) MarshalYAML() (interface{}, error) {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(v)}
	if strings.Contains(string(v), "\n") {
		n.Style = yaml.LiteralStyle
	}
	return n, nil
}

type documentMeta struct {
	Name        string            `yaml:"name"`
	Namespace   string            `yaml:"namespace,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
}

// document is the plaintext form shown to and edited by users. It is a valid
// Secret manifest on its own: stringData takes plain values.
type document struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   documentMeta      `yaml:"metadata"`
	Type       string            `yaml:"type,omitempty"`
	StringData map[string]value  `yaml:"stringData"`
	Data       map[string]string `yaml:"data,omitempty"`
}

// MarshalDocument renders d for humans.
func MarshalDocument(d *Decoded) ([]byte, error) {
	doc := document{
		APIVersion: "v1",
		Kind:       "Secret",
		Metadata: documentMeta{
			Name:        d.Meta.Name,
			Namespace:   d.Meta.Namespace,
			Labels:      d.Meta.Labels,
			Annotations: d.Meta.Annotations,
		},
		Type:       string(d.Type),
		StringData: make(map[string]value, len(d.Data)),
	}
	for k, v := range d.Data {
		doc.StringData[k] = value(v)
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render secret %s: %w", d.Meta.Name, err)
	}
	return b, nil
}

// ParseDocument reads a document written by MarshalDocument, possibly edited.
// Entries under data are taken as base64, entries under stringData win.
func ParseDocument(b []byte) (*Decoded, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if doc.Metadata.Name == "" {
		return nil, fmt.Errorf("metadata.name is required")
	}

	d := &Decoded{Type: corev1.SecretType(doc.Type), Data: map[string]string{}}
	d.Meta.Name = doc.Metadata.Name
	d.Meta.Namespace = doc.Metadata.Namespace
	d.Meta.Labels = doc.Metadata.Labels
	d.Meta.Annotations = doc.Metadata.Annotations

	for k, v := range doc.Data {
		raw, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("data.%s is not base64: %w", k, err)
		}
		d.Data[k] = string(raw)
	}
	for k, v := range doc.StringData {
		d.Data[k] = string(v)
	}
	return d, nil
}
