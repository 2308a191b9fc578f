// Package manifest turns a lain.yaml document into a typed AppManifest and
// renders it as Helm chart values.
package manifest

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/ein-plus/lain/internal/config"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/mattn/go-shellwords"
)

// AppRoot is where the application lives inside its container.
const AppRoot = "/lain/app"

// ProcessSpec is a normalized long-running process.
type ProcessSpec struct {
	Name         string
	Command      []string
	Port         int
	Memory       string
	MemoryBytes  int64
	Env          map[string]string
	SecretFiles  []string
	NumInstances int
	// Extra holds clause fields lain does not interpret, copied to values verbatim.
	Extra map[string]interface{}
}

// CronSpec is a normalized cron job.
type CronSpec struct {
	ProcessSpec
	Schedule string
}

// AppManifest is the canonical form of lain.yaml.
type AppManifest struct {
	Appname   string
	Processes map[string]ProcessSpec
	CronJobs  map[string]CronSpec
	// SecretFileMounts maps an in-container mount path to its key in the app secret.
	SecretFileMounts map[string]string
	// Build is nil unless the manifest declares a build step.
	Build   map[string]interface{}
	Release map[string]interface{}
	Test    map[string]interface{}
}

// Load reads and normalizes the lain.yaml at path.
func Load(file, fallbackAppname string) (*AppManifest, error) {
	raw, err := config.ReadTree(file)
	if err != nil {
		return nil, err
	}
	return Normalize(raw, fallbackAppname)
}

// Parse normalizes a lain.yaml document held in memory.
func Parse(b []byte, fallbackAppname string) (*AppManifest, error) {
	raw, err := yaml.Parser().Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lain.yaml: %w", err)
	}
	return Normalize(raw, fallbackAppname)
}

// Normalize classifies every top-level clause of raw and normalizes process
// and cron clauses. raw is not modified. fallbackAppname is used when the
// manifest declares no appname.
func Normalize(raw map[string]interface{}, fallbackAppname string) (*AppManifest, error) {
	m := &AppManifest{
		Appname:          fallbackAppname,
		Processes:        map[string]ProcessSpec{},
		CronJobs:         map[string]CronSpec{},
		SecretFileMounts: map[string]string{},
	}

	if v, ok := raw["appname"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, lainerr.New(lainerr.UserInput, lainerr.ErrNotLainApp, "appname must be a non-empty string, got %v", v)
		}
		m.Appname = s
	}
	if m.Appname == "" {
		return nil, lainerr.New(lainerr.UserInput, lainerr.ErrNotLainApp, "lain.yaml declares no appname")
	}

	// secret key -> the path first mounted from it
	subPaths := map[string]string{}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		if k != "appname" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		clause, err := Classify(key)
		if err != nil {
			return nil, err
		}

		body, err := asMapping(key, raw[key])
		if err != nil {
			return nil, err
		}

		switch clause.Kind {
		case AuxClause:
			copied := deepCopy(body).(map[string]interface{})
			switch clause.Name {
			case "build":
				m.Build = copied
			case "release":
				m.Release = copied
			case "test":
				m.Test = copied
			}
		case ProcessClause, CronClause:
			if m.declares(clause.Name) {
				return nil, lainerr.New(lainerr.UserInput, lainerr.ErrDuplicateProcess,
					"%q declared by %s", clause.Name, key)
			}

			spec, schedule, err := normalizeProcess(clause, body)
			if err != nil {
				return nil, err
			}
			for _, f := range spec.SecretFiles {
				sub := path.Base(f)
				if other, ok := subPaths[sub]; ok && other != f {
					return nil, lainerr.New(lainerr.UserInput, lainerr.ErrDuplicateSecretFile,
						"%s and %s would both be mounted from secret key %q", other, f, sub).
						WithRemedy("give every secret file a distinct file name")
				}
				subPaths[sub] = f
				m.SecretFileMounts[f] = sub
			}

			if clause.Kind == CronClause {
				m.CronJobs[clause.Name] = CronSpec{ProcessSpec: spec, Schedule: schedule}
			} else {
				m.Processes[clause.Name] = spec
			}
		}
	}

	return m, nil
}

func (m *AppManifest) declares(name string) bool {
	_, p := m.Processes[name]
	_, c := m.CronJobs[name]
	return p || c
}

func normalizeProcess(clause Clause, body map[string]interface{}) (ProcessSpec, string, error) {
	spec := ProcessSpec{
		Name:         clause.Name,
		Env:          map[string]string{},
		NumInstances: 1,
		Extra:        map[string]interface{}{},
	}
	var schedule string

	for k, v := range body {
		var err error
		switch k {
		case "command", "cmd":
			// command wins when both are present
			if k == "cmd" {
				if _, ok := body["command"]; ok {
					continue
				}
			}
			spec.Command, err = parseCommand(v)
		case "port":
			spec.Port, err = parseInt(v)
		case "num_instances":
			spec.NumInstances, err = parseInt(v)
		case "memory":
			spec.Memory, spec.MemoryBytes, err = CanonicalMemory(fmt.Sprint(v))
		case "env":
			spec.Env, err = parseEnv(v)
		case "secret_files":
			spec.SecretFiles, err = parseSecretFiles(v)
		case "schedule":
			if clause.Kind == CronClause {
				schedule = fmt.Sprint(v)
				continue
			}
			spec.Extra[k] = deepCopy(v)
		default:
			spec.Extra[k] = deepCopy(v)
		}
		if err != nil {
			return ProcessSpec{}, "", fmt.Errorf("%s.%s: %w", clause.Key, k, err)
		}
	}

	if clause.Kind == CronClause && schedule == "" {
		return ProcessSpec{}, "", lainerr.New(lainerr.UserInput, lainerr.ErrUnrecognizedManifestClause,
			"%s declares no schedule", clause.Key)
	}

	return spec, schedule, nil
}

func parseCommand(v interface{}) ([]string, error) {
	switch c := v.(type) {
	case nil:
		return nil, nil
	case string:
		args, err := shellwords.Parse(c)
		if err != nil {
			return nil, lainerr.New(lainerr.UserInput, err, "cannot split command %q", c)
		}
		return args, nil
	case []interface{}:
		args := make([]string, 0, len(c))
		for _, a := range c {
			args = append(args, fmt.Sprint(a))
		}
		return args, nil
	default:
		return nil, lainerr.New(lainerr.UserInput, nil, "command must be a string or a list, got %T", v)
	}
}

func parseEnv(v interface{}) (map[string]string, error) {
	env := map[string]string{}
	switch e := v.(type) {
	case nil:
	case []interface{}:
		for _, item := range e {
			s := fmt.Sprint(item)
			k, val, ok := strings.Cut(s, "=")
			if !ok || k == "" {
				return nil, lainerr.New(lainerr.UserInput, lainerr.ErrInvalidKVPair,
					"expected something like FOO=BAR, got %q", s)
			}
			env[k] = val
		}
	case map[string]interface{}:
		for k, val := range e {
			env[k] = fmt.Sprint(val)
		}
	default:
		return nil, lainerr.New(lainerr.UserInput, lainerr.ErrInvalidKVPair, "env must be a list of FOO=BAR, got %T", v)
	}
	return env, nil
}

func parseSecretFiles(v interface{}) ([]string, error) {
	list, ok := v.([]interface{})
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, lainerr.New(lainerr.UserInput, nil, "secret_files must be a list, got %T", v)
	}

	files := make([]string, 0, len(list))
	for _, item := range list {
		f := fmt.Sprint(item)
		if !path.IsAbs(f) {
			f = path.Join(AppRoot, f)
		}
		files = append(files, f)
	}
	return files, nil
}

func parseInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, lainerr.New(lainerr.UserInput, err, "expected a number, got %q", n)
		}
		return i, nil
	default:
		return 0, lainerr.New(lainerr.UserInput, nil, "expected a number, got %T", v)
	}
}

func asMapping(key string, v interface{}) (map[string]interface{}, error) {
	switch m := v.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return m, nil
	default:
		return nil, lainerr.New(lainerr.UserInput, lainerr.ErrUnrecognizedManifestClause,
			"%q clause must be a mapping, got %T", key, v)
	}
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

