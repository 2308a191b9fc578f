package values

import (
	"fmt"
	"sort"

	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/ein-plus/lain/internal/manifest"
)

// Appname returns the app name a values tree belongs to.
func Appname(tree map[string]interface{}) (string, error) {
	name, ok := tree["appname"].(string)
	if !ok || name == "" {
		return "", lainerr.New(lainerr.UserInput, lainerr.ErrNotLainApp, "values declare no appname").
			WithRemedy("if you want to use lain4 for this app, use `lain init -f`")
	}
	return name, nil
}

func section(tree map[string]interface{}, key string) map[string]interface{} {
	if KindOf(tree[key]) != Mapping {
		return map[string]interface{}{}
	}
	return toMapping(tree[key])
}

// DeploymentNames lists the deployments in the tree, sorted.
func DeploymentNames(tree map[string]interface{}) []string {
	return sortedKeys(section(tree, "deployments"))
}

// CronJobNames lists the cron jobs in the tree, sorted.
func CronJobNames(tree map[string]interface{}) []string {
	return sortedKeys(section(tree, "cronjobs"))
}

// CheckDeployments fails with ErrUnknownDeployment for any name not in the tree.
func CheckDeployments(tree map[string]interface{}, names []string) error {
	known := section(tree, "deployments")
	var unknown []string
	for _, n := range names {
		if _, ok := known[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return lainerr.New(lainerr.UserInput, lainerr.ErrUnknownDeployment,
			"unknown deploy %v, choose from: %v", unknown, sortedKeys(known))
	}
	return nil
}

// BestDeployment returns the deployment with the largest memory limit.
// Deployments without one count as manifest.DefaultMemory; ties go to the
// first name in sorted order.
func BestDeployment(tree map[string]interface{}) (string, error) {
	deployments := section(tree, "deployments")
	names := sortedKeys(deployments)
	if len(names) == 0 {
		return "", lainerr.New(lainerr.UserInput, lainerr.ErrUnknownDeployment, "no deployment declared")
	}

	var chosen string
	var most int64 = -1
	for _, name := range names {
		memory := manifest.DefaultMemory
		if d := toMappingOrNil(deployments[name]); d != nil {
			if m, ok := d["memory"]; ok && m != nil && fmt.Sprint(m) != "" {
				memory = fmt.Sprint(m)
			}
		}
		n, err := manifest.MemoryBytes(memory)
		if err != nil {
			return "", fmt.Errorf("deployment %s: %w", name, err)
		}
		if n > most {
			chosen, most = name, n
		}
	}
	return chosen, nil
}

// SecretSubPaths returns the secret keys referenced by volumeMounts, sorted.
func SecretSubPaths(tree map[string]interface{}) []string {
	seen := map[string]bool{}
	for _, m := range sequence(tree["volumeMounts"]) {
		mount := toMappingOrNil(m)
		if mount == nil {
			continue
		}
		if sub, ok := mount["subPath"].(string); ok && sub != "" {
			seen[sub] = true
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// IngressHosts returns the hosts of internal and external ingresses.
func IngressHosts(tree map[string]interface{}) (internal, external []string) {
	return hosts(tree["ingresses"]), hosts(tree["externalIngresses"])
}

// HasBuild reports whether the tree carries a legacy build clause.
func HasBuild(tree map[string]interface{}) bool {
	_, ok := tree["build"]
	return ok
}

func hosts(v interface{}) []string {
	var out []string
	for _, item := range sequence(v) {
		ing := toMappingOrNil(item)
		if ing == nil {
			continue
		}
		if h, ok := ing["host"].(string); ok && h != "" {
			out = append(out, h)
		}
	}
	return out
}

func sequence(v interface{}) []interface{} {
	if KindOf(v) != Sequence {
		return nil
	}
	return copyValue(v).([]interface{})
}

func toMappingOrNil(v interface{}) map[string]interface{} {
	if KindOf(v) != Mapping {
		return nil
	}
	return toMapping(v)
}
