package manifest

import (
	"sort"
)

// ToValues renders the manifest as the chart values tree written to
// chart/values.yaml. Auxiliary clauses are kept so the values file still
// reads as a valid lain.yaml for legacy_lain.
func (m *AppManifest) ToValues() map[string]interface{} {
	deployments := map[string]interface{}{}
	for name, p := range m.Processes {
		d := processValues(p)
		d["replicaCount"] = p.NumInstances
		if p.Port > 0 {
			d["containerPort"] = p.Port
		}
		deployments[name] = d
	}

	cronjobs := map[string]interface{}{}
	for name, c := range m.CronJobs {
		j := processValues(c.ProcessSpec)
		j["schedule"] = c.Schedule
		cronjobs[name] = j
	}

	mountPaths := make([]string, 0, len(m.SecretFileMounts))
	for p := range m.SecretFileMounts {
		mountPaths = append(mountPaths, p)
	}
	sort.Strings(mountPaths)
	volumeMounts := make([]interface{}, 0, len(mountPaths))
	for _, p := range mountPaths {
		volumeMounts = append(volumeMounts, map[string]interface{}{
			"mountPath": p,
			"subPath":   m.SecretFileMounts[p],
		})
	}

	ingresses := []interface{}{}
	if web, ok := m.Processes["web"]; ok && web.Port > 0 {
		ingresses = append(ingresses, map[string]interface{}{
			"host":       m.Appname,
			"deployName": "web",
			"paths":      []interface{}{"/"},
		})
	}

	values := map[string]interface{}{
		"appname":           m.Appname,
		"deployments":       deployments,
		"cronjobs":          cronjobs,
		"volumeMounts":      volumeMounts,
		"ingresses":         ingresses,
		"externalIngresses": []interface{}{},
	}
	for name, section := range map[string]map[string]interface{}{
		"build":   m.Build,
		"release": m.Release,
		"test":    m.Test,
	} {
		if section != nil {
			values[name] = deepCopy(section)
		}
	}

	return values
}

func processValues(p ProcessSpec) map[string]interface{} {
	v := make(map[string]interface{}, len(p.Extra)+4)
	for k, extra := range p.Extra {
		v[k] = deepCopy(extra)
	}

	command := make([]interface{}, 0, len(p.Command))
	for _, arg := range p.Command {
		command = append(command, arg)
	}
	v["command"] = command

	env := make(map[string]interface{}, len(p.Env))
	for k, val := range p.Env {
		env[k] = val
	}
	v["env"] = env

	if p.Memory != "" {
		v["memory"] = p.Memory
	}

	return v
}
