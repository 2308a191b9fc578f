// Package values layers chart values into the effective configuration.
//
// Merging follows one rule: when both sides of a key are mappings they are
// merged key by key, otherwise the incoming value replaces the existing one
// wholesale, whatever its shape was. Replacements that change the shape of a
// value are reported as Drift so callers can warn or refuse.
package values

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Kind is the shape of a configuration value.
type Kind int

const (
	Scalar Kind = iota
	Sequence
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	default:
		return "scalar"
	}
}

// KindOf classifies v. Byte slices are scalars.
func KindOf(v interface{}) Kind {
	if v == nil {
		return Scalar
	}
	switch v.(type) {
	case map[string]interface{}:
		return Mapping
	case []interface{}:
		return Sequence
	case []byte:
		return Scalar
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Map:
		return Mapping
	case reflect.Slice, reflect.Array:
		return Sequence
	default:
		return Scalar
	}
}

// Drift records a key whose incoming value replaced an existing value of a
// different shape.
type Drift struct {
	Layer    string
	Path     string
	Existing Kind
	Incoming Kind
}

func (d Drift) String() string {
	return fmt.Sprintf("%s: %s replaces %s at %s", d.Layer, d.Incoming, d.Existing, d.Path)
}

// Merge returns base overlaid with layer. Neither argument is modified and the
// result shares no mappings or sequences with them.
func Merge(base, layer map[string]interface{}) (map[string]interface{}, []Drift) {
	out := Copy(base)
	var drifts []Drift
	mergeInto(out, layer, "", &drifts)
	return out, drifts
}

func mergeInto(dst, layer map[string]interface{}, prefix string, drifts *[]Drift) {
	for _, k := range sortedKeys(layer) {
		incoming := layer[k]
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}

		existing, ok := dst[k]
		if !ok {
			dst[k] = copyValue(incoming)
			continue
		}

		ek, ik := KindOf(existing), KindOf(incoming)
		if ek == Mapping && ik == Mapping {
			sub := toMapping(existing)
			mergeInto(sub, toMapping(incoming), path, drifts)
			dst[k] = sub
			continue
		}

		if ek != ik {
			*drifts = append(*drifts, Drift{Path: path, Existing: ek, Incoming: ik})
		}
		dst[k] = copyValue(incoming)
	}
}

// Layer is one named source of values.
type Layer struct {
	Name string
	Tree map[string]interface{}
}

// MergeLayers folds layers left to right; later layers win.
func MergeLayers(layers ...Layer) (map[string]interface{}, []Drift) {
	if len(layers) == 0 {
		return map[string]interface{}{}, nil
	}

	out := Copy(layers[0].Tree)
	var all []Drift
	for _, l := range layers[1:] {
		var drifts []Drift
		mergeInto(out, l.Tree, "", &drifts)
		for j := range drifts {
			drifts[j].Layer = l.Name
		}
		all = append(all, drifts...)
	}
	return out, all
}

// Copy deep-copies a tree, normalizing nested maps to map[string]interface{}
// and slices to []interface{}.
func Copy(tree map[string]interface{}) map[string]interface{} {
	if tree == nil {
		return map[string]interface{}{}
	}
	return copyValue(tree).(map[string]interface{})
}

func copyValue(v interface{}) interface{} {
	switch KindOf(v) {
	case Mapping:
		src := toMapping(v)
		out := make(map[string]interface{}, len(src))
		for k, val := range src {
			out[k] = copyValue(val)
		}
		return out
	case Sequence:
		rv := reflect.ValueOf(v)
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = copyValue(rv.Index(i).Interface())
		}
		return out
	default:
		return v
	}
}

// toMapping views a mapping-kinded value as map[string]interface{}. Callers
// that store the result must copy it first.
func toMapping(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	rv := reflect.ValueOf(v)
	out := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatDrifts renders drifts one per line.
func FormatDrifts(drifts []Drift) string {
	lines := make([]string, 0, len(drifts))
	for _, d := range drifts {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}
